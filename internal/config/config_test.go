package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SHEET_TIMEOUT", "")
	t.Setenv("SHEET_RETRY_DELAY", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("CHROME_ENABLED", "")
	t.Setenv("CHROME_REMOTE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8097", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 20*time.Second, cfg.Sheet.Timeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Sheet.RetryDelay)
	assert.False(t, cfg.Sheet.IdempotencyKeys)
	assert.Equal(t, 12*time.Hour, cfg.JWT.TTL)
	assert.NotEmpty(t, cfg.JWT.Secret, "development gets a fallback secret")
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.False(t, cfg.RendererEnabled(), "no browser unless asked for")
	assert.NoError(t, cfg.Validate())
}

func TestRendererEnabled(t *testing.T) {
	var c Config
	assert.False(t, c.RendererEnabled())

	c.Chrome.RemoteURL = "ws://chrome:9222"
	assert.True(t, c.RendererEnabled())

	c = Config{}
	c.Chrome.Enabled = true
	assert.True(t, c.RendererEnabled())

	t.Setenv("CHROME_ENABLED", "true")
	t.Setenv("CHROME_REMOTE_URL", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.RendererEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("APP_HOST", "")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SHEET_TIMEOUT", "5s")
	t.Setenv("SHEET_IDEMPOTENCY_KEYS", "true")
	t.Setenv("SHEET_API_URL", "https://script.google.com/macros/s/abc/exec")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, "redis", cfg.StoreDriver)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 5*time.Second, cfg.Sheet.Timeout)
	assert.True(t, cfg.Sheet.IdempotencyKeys)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("SHEET_TIMEOUT", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "SHEET_TIMEOUT")

	t.Setenv("SHEET_TIMEOUT", "")
	t.Setenv("CHROME_ENABLED", "nope")
	_, err = Load()
	assert.ErrorContains(t, err, "CHROME_ENABLED")

	t.Setenv("CHROME_ENABLED", "")
	t.Setenv("CHROME_NO_SANDBOX", "maybe")
	_, err = Load()
	assert.ErrorContains(t, err, "CHROME_NO_SANDBOX")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{StoreDriver: "sqlite", SQLitePath: "x.db", AppEnv: "development"}
		c.JWT.Secret = "s"
		c.JWT.TTL = time.Hour
		c.Sheet.Timeout = time.Second
		c.Sheet.RetryDelay = time.Second
		return c
	}
	require.NoError(t, base().Validate())

	c := base()
	c.StoreDriver = "mongo"
	assert.Error(t, c.Validate())

	c = base()
	c.AppEnv = "production"
	c.JWT.Secret = ""
	assert.ErrorContains(t, c.Validate(), "JWT_SECRET")

	c = base()
	c.AppEnv = "production"
	c.JWT.Secret = devJWTSecret
	assert.Error(t, c.Validate())

	c = base()
	c.Sheet.URL = "script.google.com/exec"
	assert.ErrorContains(t, c.Validate(), "SHEET_API_URL")

	c = base()
	c.Minio.Endpoint = "localhost:9000"
	assert.ErrorContains(t, c.Validate(), "MINIO")

	c = base()
	c.StoreDriver = "postgres"
	c.DB.Host = "db"
	c.DB.Database = "desk"
	c.AppEnv = "production"
	assert.ErrorContains(t, c.Validate(), "DB_PASSWORD")
}

func TestDSN(t *testing.T) {
	c := &Config{StoreDriver: "sqlite", SQLitePath: "desk.db"}
	assert.Equal(t, "desk.db", c.DSN())

	c.StoreDriver = "postgres"
	c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode = "h", "5432", "u", "p@ss", "d", "disable"
	assert.Equal(t, "host=h port=5432 user=u password=p@ss dbname=d sslmode=disable", c.DSN())
	assert.Equal(t, "postgres://u:p%40ss@h:5432/d?sslmode=disable", c.DatabaseURL())
}
