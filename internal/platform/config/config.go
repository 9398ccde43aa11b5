package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	AuditTopic    string
	JWTSigningKey string

	Gateway GatewayConfig
	Redis   RedisConfig

	// TrackingCacheTTL bounds how long a tracking-number lookup may be
	// served from cache after the underlying request changed state.
	TrackingCacheTTL time.Duration
}

// GatewayConfig configures the external payment gateway adapter.
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	SiteID  string
	// NotifyURL is the public webhook the gateway calls back on.
	NotifyURL string
	Timeout   time.Duration
}

// RedisConfig tunes the go-redis client.
type RedisConfig struct {
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv reads configuration from the environment, applying development
// defaults where a value is absent.
func FromEnv() Config {
	cfg := Config{
		Addr:             envOr("ETATCIVIL_ADDR", ":8080"),
		DatabaseURL:      envOr("DATABASE_URL", "postgres://localhost:5432/etatcivil?sslmode=disable"),
		RedisURL:         os.Getenv("REDIS_URL"),
		AuditTopic:       envOr("AUDIT_TOPIC", "etatcivil.audit"),
		JWTSigningKey:    envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TrackingCacheTTL: 2 * time.Minute,
		Gateway: GatewayConfig{
			BaseURL:   os.Getenv("PAYMENT_GATEWAY_URL"),
			APIKey:    os.Getenv("PAYMENT_GATEWAY_API_KEY"),
			SiteID:    os.Getenv("PAYMENT_GATEWAY_SITE_ID"),
			NotifyURL: os.Getenv("PAYMENT_NOTIFY_URL"),
			Timeout:   10 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
