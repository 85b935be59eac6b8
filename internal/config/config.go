package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig aggregates runtime configuration, injected through environment
// variables so deployments never hardcode credentials.
type AppConfig struct {
	HTTPAddr        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string

	// Postgres (orders, audit log)
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsDir    string

	// MongoDB (carts)
	MongoURI string
	MongoDB  string

	// Redis (notification dedup gate)
	RedisAddr string
	RedisDB   int
	NotifyTTL time.Duration

	// Kafka (notification topic)
	KafkaBrokers []string
	KafkaTopic   string

	// Payment gateway
	GatewayBaseURL       string
	GatewayClientID      string
	GatewayClientSecret  string
	GatewayWebhookSecret string
	PaymentCallbackURL   string
	// WebhookStrict rejects webhooks when no signing secret is configured.
	WebhookStrict bool

	// Reaper
	PaymentTimeout time.Duration
	ReaperInterval time.Duration
	ReaperDryRun   bool
}

// Load reads and validates the configuration, falling back to defaults where
// a value is optional.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "kora"),
		MigrationsDir:    getEnv("MIGRATIONS_DIR", "internal/repository/migrations"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "kora"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		NotifyTTL: 24 * time.Hour,

		KafkaBrokers: splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "payment-notifications"),

		GatewayBaseURL:       getEnv("GATEWAY_BASE_URL", ""),
		GatewayClientID:      getEnv("GATEWAY_CLIENT_ID", ""),
		GatewayClientSecret:  getEnv("GATEWAY_CLIENT_SECRET", ""),
		GatewayWebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
		PaymentCallbackURL:   getEnv("PAYMENT_CALLBACK_URL", ""),

		PaymentTimeout: 30 * time.Minute,
		ReaperInterval: time.Minute,
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	timeoutMin, err := getEnvInt("PAYMENT_TIMEOUT_MIN", int(cfg.PaymentTimeout.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid PAYMENT_TIMEOUT_MIN: %w", err)
	}
	if timeoutMin <= 0 {
		return AppConfig{}, fmt.Errorf("PAYMENT_TIMEOUT_MIN must be > 0")
	}
	cfg.PaymentTimeout = time.Duration(timeoutMin) * time.Minute

	intervalSec, err := getEnvInt("REAPER_INTERVAL_SEC", int(cfg.ReaperInterval.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REAPER_INTERVAL_SEC: %w", err)
	}
	if intervalSec <= 0 {
		return AppConfig{}, fmt.Errorf("REAPER_INTERVAL_SEC must be > 0")
	}
	cfg.ReaperInterval = time.Duration(intervalSec) * time.Second

	cfg.ReaperDryRun, err = getEnvBool("REAPER_DRY_RUN", false)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REAPER_DRY_RUN: %w", err)
	}
	cfg.WebhookStrict, err = getEnvBool("PAYMENT_WEBHOOK_STRICT", true)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid PAYMENT_WEBHOOK_STRICT: %w", err)
	}

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.PostgresUser == "" || cfg.PostgresDB == "" {
		return AppConfig{}, fmt.Errorf("POSTGRES_USER and POSTGRES_DB must not be empty")
	}
	// The gateway is optional in development; when it is configured it must
	// be configured fully.
	if cfg.GatewayBaseURL != "" {
		if cfg.GatewayClientID == "" || cfg.GatewayClientSecret == "" {
			return AppConfig{}, fmt.Errorf("GATEWAY_CLIENT_ID and GATEWAY_CLIENT_SECRET are required when GATEWAY_BASE_URL is set")
		}
		if cfg.PaymentCallbackURL == "" {
			return AppConfig{}, fmt.Errorf("PAYMENT_CALLBACK_URL is required when GATEWAY_BASE_URL is set")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
