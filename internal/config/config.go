package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	RabbitMQURL        string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string
	LogFile            string
	RunMigrations      bool

	CurrencyCode      string
	PricingTaxRateBPS int
	CartTTL           time.Duration
	CartLockTTL       time.Duration
	LockRetryBackoff  time.Duration
	IdempotencyTTL    time.Duration

	CatalogCacheTTL    time.Duration
	CatalogPageSize    int
	CatalogMaxPageSize int
	CatalogLatestLimit int
	AnalyticsCacheTTL  time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration
	PublicRateLimit string
	BodyLimitBytes  int64
	SecurityHeaders bool

	EventsPublishEnabled bool
	EventsExchange       string
	EventsQueueAddr      string
	BreakerMinRequests   int
	BreakerFailureRatio  float64
	BreakerOpenFor       time.Duration
	CartPurgeSpec        string

	WebhookURLs    []string
	WebhookSecret  string
	WebhookTopics  []string
	WebhookTimeout time.Duration
	AuditEnabled   bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		RabbitMQURL:        k.String("RABBITMQ_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "fafa-store"),
		JWTAudience:        valueOrDefault(k.String("JWT_AUDIENCE"), "fafa-store-api"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogFile:            strings.TrimSpace(k.String("LOG_FILE")),
		RunMigrations:      parseBoolDefault(k.String("RUN_MIGRATIONS"), true),

		CurrencyCode:      valueOrDefault(k.String("CURRENCY_CODE"), "DZD"),
		PricingTaxRateBPS: parseInt(k.String("PRICING_TAX_RATE_BPS"), 0),
		CartTTL:           parseDuration(k.String("CART_TTL"), "168h"),
		CartLockTTL:       parseDuration(k.String("CART_LOCK_TTL"), "5s"),
		LockRetryBackoff:  parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogPageSize:    parseInt(k.String("CATALOG_PAGE_SIZE"), 10),
		CatalogMaxPageSize: parseInt(k.String("CATALOG_MAX_PAGE_SIZE"), 100),
		CatalogLatestLimit: parseInt(k.String("CATALOG_LATEST_LIMIT"), 4),
		AnalyticsCacheTTL:  parseDuration(k.String("ANALYTICS_CACHE_TTL"), "1m"),

		RateLimitMax:    parseInt(k.String("RATE_LIMIT_MAX"), 120),
		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		PublicRateLimit: valueOrDefault(k.String("PUBLIC_RATE_LIMIT"), "600-M"),
		BodyLimitBytes:  int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeaders: parseBoolDefault(k.String("SECURITY_HEADERS"), true),

		EventsPublishEnabled: parseBool(k.String("EVENTS_PUBLISH_ENABLED")),
		EventsExchange:       valueOrDefault(k.String("EVENTS_EXCHANGE"), "storefront.events"),
		EventsQueueAddr:      strings.TrimSpace(k.String("EVENTS_QUEUE_REDIS_ADDR")),
		BreakerMinRequests:   parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio:  parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:       parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),
		CartPurgeSpec:        valueOrDefault(k.String("CART_PURGE_CRON"), "@every 1h"),

		WebhookURLs:    splitAndTrim(k.String("WEBHOOK_URLS")),
		WebhookSecret:  k.String("WEBHOOK_SECRET"),
		WebhookTopics:  splitAndTrim(k.String("WEBHOOK_TOPICS")),
		WebhookTimeout: parseDuration(k.String("WEBHOOK_TIMEOUT"), "5s"),
		AuditEnabled:   parseBoolDefault(k.String("AUDIT_ENABLED"), true),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" && cfg.AppEnv == "production" {
		return nil, errors.New("JWT_SECRET is required in production")
	}
	if cfg.EventsPublishEnabled && cfg.RabbitMQURL == "" {
		return nil, errors.New("RABBITMQ_URL is required when EVENTS_PUBLISH_ENABLED is set")
	}
	if len(cfg.WebhookURLs) > 0 && cfg.WebhookSecret == "" {
		return nil, errors.New("WEBHOOK_SECRET is required when WEBHOOK_URLS is set")
	}
	if cfg.PricingTaxRateBPS < 0 || cfg.PricingTaxRateBPS > 10000 {
		return nil, fmt.Errorf("PRICING_TAX_RATE_BPS out of range: %d", cfg.PricingTaxRateBPS)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
