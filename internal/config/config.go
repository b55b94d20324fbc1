// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackendMongo   = "mongo"
	BackendSQLite  = "sqlite"
	OrdersREST     = "rest"
	OrdersPostgres = "postgres"

	defaultEnvFile  = ".env"
	minSecretLength = 16
)

type Config struct {
	HTTPPort        string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxRequestBody  int64

	StorageBackend string
	RedisAddr      string
	RedisPassword  string
	RedisTTL       time.Duration
	MongoURI       string
	MongoDBName    string
	SQLitePath     string

	KafkaBrokers  []string
	EventsTopic   string
	OrdersTopic   string
	ConsumerGroup string

	ShopifyDomain     string
	ShopifyToken      string
	ShopifyAPIVersion string
	CatalogRPS        float64
	CatalogCacheTTL   time.Duration

	OrdersBackend string
	OrdersURL     string
	Postgres      PostgresConfig

	SendGridAPIKey string
	SendGridHost   string
	MailFrom       string
	MailFromName   string

	SessionSecret string
	SessionTTL    time.Duration
	SecureCookies bool

	FreeShippingThreshold float64
	ShippingRate          float64
	HandlingFee           float64

	ToastLifetime  time.Duration
	ToastCap       int
	SessionIdleTTL time.Duration
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Load reads an optional .env file and then the environment. Variables already set in the
// environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{defaultEnvFile}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	p := &parser{}
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RequestTimeout:  p.duration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBody:  int64(p.integer("MAX_REQUEST_BODY", 1<<20)),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTTL:       p.duration("REDIS_TTL", 30*24*time.Hour),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:    getEnv("MONGO_DB_NAME", "storefront"),
		SQLitePath:     getEnv("SQLITE_PATH", "./storefront.db"),

		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "")),
		EventsTopic:   getEnv("EVENTS_TOPIC", "storefront-events"),
		OrdersTopic:   getEnv("ORDERS_TOPIC", "storefront-orders"),
		ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "storefront-service"),

		ShopifyDomain:     getEnv("SHOPIFY_DOMAIN", ""),
		ShopifyToken:      getEnv("SHOPIFY_STOREFRONT_TOKEN", ""),
		ShopifyAPIVersion: getEnv("SHOPIFY_API_VERSION", "2023-07"),
		CatalogRPS:        p.float("CATALOG_RPS", 4),
		CatalogCacheTTL:   p.duration("CATALOG_CACHE_TTL", 15*time.Minute),

		OrdersBackend: strings.ToLower(getEnv("ORDERS_BACKEND", OrdersREST)),
		OrdersURL:     getEnv("ORDERS_URL", "http://localhost:8081/orders"),
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     p.integer("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "storefront"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		SendGridHost:   getEnv("SENDGRID_HOST", ""),
		MailFrom:       getEnv("MAIL_FROM", "orders@example.com"),
		MailFromName:   getEnv("MAIL_FROM_NAME", "Storefront"),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    p.duration("SESSION_TTL", 365*24*time.Hour),
		SecureCookies: p.boolean("SECURE_COOKIES", false),

		FreeShippingThreshold: p.float("FREE_SHIPPING_THRESHOLD", 500),
		ShippingRate:          p.float("SHIPPING_RATE", 20),
		HandlingFee:           p.float("HANDLING_FEE", 10),

		ToastLifetime:  p.duration("TOAST_LIFETIME", 2*time.Second),
		ToastCap:       p.integer("TOAST_CAP", 5),
		SessionIdleTTL: p.duration("SESSION_IDLE_TTL", 30*time.Minute),
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend names and numeric ranges.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case BackendMemory, BackendRedis, BackendMongo, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND: unknown backend %q", c.StorageBackend))
	}
	switch c.OrdersBackend {
	case OrdersREST:
		if c.OrdersURL == "" {
			errs = append(errs, errors.New("ORDERS_URL is required for the rest orders backend"))
		}
	case OrdersPostgres:
	default:
		errs = append(errs, fmt.Errorf("ORDERS_BACKEND: unknown backend %q", c.OrdersBackend))
	}

	if c.SessionSecret != "" && len(c.SessionSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSecretLength))
	}

	positive := map[string]float64{
		"REQUEST_TIMEOUT":         float64(c.RequestTimeout),
		"SHUTDOWN_TIMEOUT":        float64(c.ShutdownTimeout),
		"MAX_REQUEST_BODY":        float64(c.MaxRequestBody),
		"TOAST_LIFETIME":          float64(c.ToastLifetime),
		"TOAST_CAP":               float64(c.ToastCap),
		"FREE_SHIPPING_THRESHOLD": c.FreeShippingThreshold,
		"SESSION_TTL":             float64(c.SessionTTL),
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	nonNegative := map[string]float64{
		"SHIPPING_RATE":    c.ShippingRate,
		"HANDLING_FEE":     c.HandlingFee,
		"CATALOG_RPS":      c.CatalogRPS,
		"SESSION_IDLE_TTL": float64(c.SessionIdleTTL),
	}
	for name, v := range nonNegative {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	return errors.Join(errs...)
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects conversion errors so every bad variable is reported at once.
type parser struct {
	errs []error
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) integer(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
