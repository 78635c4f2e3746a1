package bootstrap

import (
	"context"
	"testing"

	"photofeed/internal/config"
	"photofeed/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, env string) *config.Config {
	mr := miniredis.RunT(t)
	return &config.Config{
		Env:            env,
		DBDriver:       "sqlite",
		SQLitePath:     ":memory:",
		RedisURL:       "redis://" + mr.Addr(),
		StorageDriver:  "memory",
		StorageBuckets: "posts,avatars",
	}
}

func TestInitRuntime(t *testing.T) {
	ctx := context.Background()
	rt, err := InitRuntime(ctx, testConfig(t, "test"), Options{SeedDemo: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Redis.Close() })

	require.NoError(t, rt.Redis.Ping(ctx).Err())
	require.NoError(t, rt.Objects.Put(ctx, "posts", "k.jpg", []byte{1}, "image/jpeg", false))

	var n int64
	require.NoError(t, rt.DB.Model(&models.Account{}).Count(&n).Error)
	assert.Zero(t, n, "demo data is development only")
}

func TestInitRuntimeSeedsDevelopment(t *testing.T) {
	ctx := context.Background()
	rt, err := InitRuntime(ctx, testConfig(t, "development"), Options{SeedDemo: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Redis.Close() })

	var n int64
	require.NoError(t, rt.DB.Model(&models.Post{}).Count(&n).Error)
	assert.EqualValues(t, 30, n)
}

func TestInitRuntimeRedisDown(t *testing.T) {
	cfg := testConfig(t, "test")
	cfg.RedisURL = "redis://127.0.0.1:1"
	_, err := InitRuntime(context.Background(), cfg, Options{})
	assert.ErrorContains(t, err, "redis connection failed")
}
