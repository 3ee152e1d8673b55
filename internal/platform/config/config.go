// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// SealMasterKey protects escrowed fields at rest. Hex-encoded, 32 bytes.
	SealMasterKey []byte

	Postgres PostgresConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Kafka    KafkaConfig

	Throttle ThrottleConfig
}

// PostgresConfig holds the escrow and audit store connection settings. An
// empty URL selects the in-memory stores.
type PostgresConfig struct {
	URL string
}

// RedisConfig holds the distributed throttle backend settings. An empty URL
// selects the in-process fallback limiter.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SMTPConfig holds delivery channel settings. An empty Addr selects the
// log-only deliverer.
type SMTPConfig struct {
	Addr     string
	From     string
	Username string
	Password string
}

// KafkaConfig holds the optional audit sink settings. Empty brokers disable
// the sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ThrottleConfig bounds request rates per client IP at the HTTP edge,
// independent of the per-record recovery attempt policy.
type ThrottleConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

// FromEnv builds a Server config from environment variables. Missing values
// fall back to development defaults; production deployments override them.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          envOr("KEYHAVEN_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("JWT_ISSUER", "keyhaven"),
		JWTAudience:   envOr("JWT_AUDIENCE", "keyhaven-clients"),
		Postgres: PostgresConfig{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		SMTP: SMTPConfig{
			Addr:     os.Getenv("SMTP_ADDR"),
			From:     envOr("SMTP_FROM", "recovery@keyhaven.local"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_AUDIT_TOPIC", "keyhaven.audit"),
		},
		Throttle: ThrottleConfig{
			RequestsPerWindow: envInt("THROTTLE_REQUESTS", 30),
			Window:            time.Minute,
		},
	}

	sealKey, err := sealKeyFromEnv()
	if err != nil {
		return Server{}, err
	}
	cfg.SealMasterKey = sealKey
	return cfg, nil
}

func sealKeyFromEnv() ([]byte, error) {
	raw := os.Getenv("SEAL_MASTER_KEY")
	if raw == "" {
		// Development fallback so the server boots without setup. Any real
		// deployment must set SEAL_MASTER_KEY or escrowed data is readable
		// by anyone with the source.
		raw = strings.Repeat("0b", 32)
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("SEAL_MASTER_KEY must be hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("SEAL_MASTER_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
