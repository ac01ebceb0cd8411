package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type PaystackConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

type Config struct {
	App struct {
		Port string
	}
	Postgres PostgresConfig
	Redis    struct {
		Addr string
	}
	Kafka struct {
		Brokers []string
		Topic   string
	}
	Paystack              PaystackConfig
	TokenSecret           string
	PlatformFeePercentage float64
	Currency              string
}

// NewConfig loads configuration from the environment, optionally seeded
// from a .env file. Required keys fail fast.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.App.Port = getenv("APP_PORT", "8080")

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	if cfg.Postgres.Host == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	cfg.Postgres.Port = getenv("DB_PORT", "5432")
	cfg.Postgres.User = os.Getenv("DB_USER")
	if cfg.Postgres.User == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	if cfg.Postgres.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	if cfg.Postgres.DBName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	cfg.Postgres.SSLMode = getenv("DB_SSLMODE", "disable")
	cfg.Postgres.MaxConns = int32(getenvInt("DB_MAX_CONNS", 10))
	cfg.Postgres.MinConns = int32(getenvInt("DB_MIN_CONNS", 2))
	cfg.Postgres.MaxConnLifetime = getenvDuration("DB_MAX_CONN_LIFETIME", time.Hour)
	cfg.Postgres.MigrationsPath = getenv("DB_MIGRATIONS_PATH", "migrations")

	cfg.Redis.Addr = getenv("REDIS_ADDR", "localhost:6379")

	cfg.Kafka.Brokers = splitCSV(getenv("KAFKA_BROKERS", ""))
	cfg.Kafka.Topic = getenv("KAFKA_TOPIC", "marketplace.events")

	cfg.Paystack.SecretKey = os.Getenv("PAYSTACK_SECRET_KEY")
	if cfg.Paystack.SecretKey == "" {
		return nil, fmt.Errorf("PAYSTACK_SECRET_KEY is required")
	}
	cfg.Paystack.BaseURL = getenv("PAYSTACK_BASE_URL", "https://api.paystack.co")
	cfg.Paystack.Timeout = getenvDuration("PAYSTACK_TIMEOUT", 15*time.Second)

	cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is required")
	}

	feeStr := getenv("PLATFORM_FEE_PERCENTAGE", "5")
	fee, err := strconv.ParseFloat(feeStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_FEE_PERCENTAGE %q: %w", feeStr, err)
	}
	if fee < 0 || fee > 100 {
		return nil, fmt.Errorf("PLATFORM_FEE_PERCENTAGE must be between 0 and 100, got %v", fee)
	}
	cfg.PlatformFeePercentage = fee

	cfg.Currency = getenv("CURRENCY", "ZAR")

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
