package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppHost   string
	HTTPPort  string
	AppEnv    string
	LogLevel  string
	LogFormat string

	Sheet struct {
		// URL is used until an admin stores one through the config endpoint.
		URL             string
		Timeout         time.Duration
		RetryDelay      time.Duration
		IdempotencyKeys bool
	}

	// StoreDriver selects the local key-value store: sqlite, postgres or redis.
	StoreDriver string
	SQLitePath  string

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	JWT struct {
		Secret string
		TTL    time.Duration
	}

	Kafka struct {
		Brokers     string
		TicketTopic string
	}

	Chrome struct {
		// Enabled launches a local headless browser for invoice images.
		Enabled   bool
		RemoteURL string
		NoSandbox bool
	}

	Minio struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
	}

	Gemini struct {
		APIKey string
		Model  string
	}
}

const devJWTSecret = "diticoms-dev-secret"

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:     getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:    firstEnv("APP_PORT", "HTTP_PORT", "8097"),
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", ""),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		SQLitePath:  getEnv("SQLITE_PATH", "diticoms.db"),
	}

	var err error
	cfg.Sheet.URL = firstEnv("SHEET_API_URL", "API_URL", "")
	if cfg.Sheet.Timeout, err = getDuration("SHEET_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.Sheet.RetryDelay, err = getDuration("SHEET_RETRY_DELAY", 1500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Sheet.IdempotencyKeys, err = getBool("SHEET_IDEMPOTENCY_KEYS", false); err != nil {
		return nil, err
	}

	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "service_desk")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	if cfg.Redis.DB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("config: REDIS_DB: %w", err)
	}

	cfg.JWT.Secret = getEnv("JWT_SECRET", "")
	if cfg.JWT.TTL, err = getDuration("JWT_TTL", 12*time.Hour); err != nil {
		return nil, err
	}

	cfg.Kafka.Brokers = getEnv("KAFKA_BROKERS", "")
	cfg.Kafka.TicketTopic = getEnv("KAFKA_TOPIC_TICKET", "service-desk.tickets")

	cfg.Chrome.RemoteURL = getEnv("CHROME_REMOTE_URL", "")
	if cfg.Chrome.Enabled, err = getBool("CHROME_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.Chrome.NoSandbox, err = getBool("CHROME_NO_SANDBOX", false); err != nil {
		return nil, err
	}

	cfg.Minio.Endpoint = getEnv("MINIO_ENDPOINT", "")
	cfg.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", "")
	cfg.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", "")
	cfg.Minio.Bucket = getEnv("MINIO_BUCKET", "invoices")
	if cfg.Minio.UseSSL, err = getBool("MINIO_USE_SSL", false); err != nil {
		return nil, err
	}

	cfg.Gemini.APIKey = firstEnv("GEMINI_API_KEY", "API_KEY", "")
	cfg.Gemini.Model = getEnv("GEMINI_MODEL", "gemini-2.5-flash")

	if cfg.JWT.Secret == "" && !cfg.IsProduction() {
		cfg.JWT.Secret = devJWTSecret
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// RendererEnabled reports whether invoice images can be rendered: either a
// remote browser is configured or a local one was switched on.
func (c *Config) RendererEnabled() bool {
	return c.Chrome.Enabled || c.Chrome.RemoteURL != ""
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("config: SQLITE_PATH is required for the sqlite store")
		}
	case "postgres":
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("config: DB_HOST and DB_DATABASE are required")
		}
		if c.IsProduction() && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("config: REDIS_ADDR is required for the redis store")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q (want sqlite, postgres or redis)", c.StoreDriver)
	}
	if c.JWT.Secret == "" {
		return errors.New("config: in production JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWT.Secret == devJWTSecret {
		return errors.New("config: JWT_SECRET must be changed in production")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("config: JWT_TTL must be positive")
	}
	if c.Sheet.Timeout <= 0 || c.Sheet.RetryDelay <= 0 {
		return errors.New("config: SHEET_TIMEOUT and SHEET_RETRY_DELAY must be positive")
	}
	if c.Sheet.URL != "" {
		if u, err := url.Parse(c.Sheet.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("config: SHEET_API_URL %q is not an http(s) URL", c.Sheet.URL)
		}
	}
	if c.Minio.Endpoint != "" && (c.Minio.AccessKey == "" || c.Minio.SecretKey == "" || c.Minio.Bucket == "") {
		return errors.New("config: MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET are required with MINIO_ENDPOINT")
	}
	return nil
}

// DSN returns the gorm data source for the configured store driver.
func (c *Config) DSN() string {
	if c.StoreDriver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}
