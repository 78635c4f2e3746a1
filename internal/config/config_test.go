package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:            "8080",
		Env:             "development",
		JWTSecret:       "secure-secret-at-least-32-chars-long",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		DBDriver:        "postgres",
		DBPassword:      "secure-password",
		DBSSLMode:       "disable",
		StorageDriver:   "minio",
		StorageBuckets:  "posts,avatars",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProductionGuards(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"Default secret", func(c *Config) { c.JWTSecret = DefaultJWTSecret }},
		{"Short secret", func(c *Config) { c.JWTSecret = "short" }},
		{"Weak DB password", func(c *Config) { c.DBPassword = "password" }},
		{"SQLite driver", func(c *Config) { c.DBDriver = "sqlite" }},
		{"Memory storage", func(c *Config) { c.StorageDriver = "memory" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = "production"
			c.DBSSLMode = "require"
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_ValidateBasics(t *testing.T) {
	c := validConfig()
	c.RefreshTokenTTL = time.Minute
	assert.Error(t, c.Validate())

	c = validConfig()
	c.DBDriver = "mysql"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.StorageBuckets = " , "
	assert.Error(t, c.Validate())
}

func TestConfig_Buckets(t *testing.T) {
	c := &Config{StorageBuckets: " posts, avatars ,,"}
	assert.Equal(t, []string{"posts", "avatars"}, c.Buckets())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("DB_DRIVER", "sqlite")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 15*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.True(t, c.RequireEmailConfirmation)
	assert.Equal(t, []string{"posts", "avatars"}, c.Buckets())
}

func TestLoadClientConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("API_URL", "http://api.example.test")

	c, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.test", c.APIURL)
	assert.Equal(t, 15*time.Second, c.RequestTimeout)
	assert.NotEmpty(t, c.SessionFile)
}
