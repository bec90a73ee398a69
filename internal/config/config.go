package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	StorageBackend string // memory|redis|mongo|sqlite
	RedisAddr      string
	RedisPassword  string
	CartTTL        time.Duration
	MongoURI       string
	MongoDBName    string
	SQLitePath     string

	CatalogSource string // embedded|sqlite|file
	CatalogPath   string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	PaymentDelay       time.Duration
	PaymentTimeout     time.Duration
	PaymentFailureRate int

	LogLevel string
	AppEnv   string
}

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		StorageBackend: getEnv("STORAGE_BACKEND", "memory"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:    getEnv("MONGO_DB_NAME", "cafedb"),
		SQLitePath:     getEnv("SQLITE_PATH", "cafe.db"),
		CatalogSource:  getEnv("CATALOG_SOURCE", "embedded"),
		CatalogPath:    getEnv("CATALOG_PATH", ""),
		KafkaBrokers:   splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "checkout-outbox"),
		KafkaGroupID:   getEnv("KAFKA_GROUP_ID", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AppEnv:         getEnv("APP_ENV", "development"),
	}

	var err error
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.CartTTL, err = getDuration("CART_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.PaymentDelay, err = getDuration("PAYMENT_DELAY", 1500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.PaymentTimeout, err = getDuration("PAYMENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PaymentFailureRate, err = getInt("PAYMENT_FAILURE_RATE", 0); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case "memory", "redis", "mongo", "sqlite":
	default:
		return fmt.Errorf("STORAGE_BACKEND: unsupported value %q", c.StorageBackend)
	}
	switch c.CatalogSource {
	case "embedded", "sqlite":
	case "file":
		if c.CatalogPath == "" {
			return errors.New("CATALOG_PATH is required when CATALOG_SOURCE=file")
		}
	default:
		return fmt.Errorf("CATALOG_SOURCE: unsupported value %q", c.CatalogSource)
	}
	if c.PaymentFailureRate < 0 || c.PaymentFailureRate > 100 {
		return fmt.Errorf("PAYMENT_FAILURE_RATE must be within 0..100, got %d", c.PaymentFailureRate)
	}
	if c.PaymentTimeout <= 0 {
		return errors.New("PAYMENT_TIMEOUT must be positive")
	}
	return nil
}

// KafkaEnabled reports whether order completions are fanned out.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
