package database

import (
	"context"
	"testing"

	"photofeed/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig() *config.Config {
	return &config.Config{
		Env:        "test",
		DBDriver:   "sqlite",
		SQLitePath: ":memory:",
	}
}

func TestConnect_SQLiteMigrates(t *testing.T) {
	db, err := Connect(sqliteConfig())
	require.NoError(t, err)

	status, err := Status(context.Background(), db)
	require.NoError(t, err)

	tables := map[string]bool{}
	for _, s := range status {
		tables[s.Table] = s.Exists
	}
	assert.Equal(t, map[string]bool{
		"accounts": true,
		"users":    true,
		"posts":    true,
		"likes":    true,
	}, tables)
}

func TestConnectWithOptions_NoMigrate(t *testing.T) {
	db, err := ConnectWithOptions(sqliteConfig(), ConnectOptions{AutoMigrate: false})
	require.NoError(t, err)

	status, err := Status(context.Background(), db)
	require.NoError(t, err)
	for _, s := range status {
		assert.False(t, s.Exists, s.Table)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestBuildDSN(t *testing.T) {
	cfg := &config.Config{
		DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "photofeed",
		DBReadHost: "replica", DBReadPort: "5433", DBReadUser: "ro", DBReadPassword: "rp",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=photofeed sslmode=disable", primaryDSN(cfg))
	assert.Equal(t, "host=replica port=5433 user=ro password=rp dbname=photofeed sslmode=disable", readDSN(cfg))
}
