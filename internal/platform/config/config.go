package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string

	PostgresURL string
	Redis       RedisConfig

	KafkaSeeds []string
	KafkaTopic string

	// SweepSchedule is the cron spec for the periodic chain-integrity sweep.
	SweepSchedule string

	// BroadcastBuffer bounds the outbound notification queue.
	BroadcastBuffer int

	// LockTTL bounds how long a per-case lock may be held before it expires.
	LockTTL time.Duration
}

// RedisConfig holds connection settings for the optional Redis case locker.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:            envOr("CASEFLOW_ADDR", ":8080"),
		JWTSigningKey:   envOr("CASEFLOW_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:       envOr("CASEFLOW_JWT_ISSUER", "caseflow"),
		PostgresURL:     os.Getenv("CASEFLOW_POSTGRES_URL"),
		KafkaTopic:      envOr("CASEFLOW_KAFKA_TOPIC", "caseflow.notifications"),
		SweepSchedule:   envOr("CASEFLOW_SWEEP_SCHEDULE", "@every 1h"),
		BroadcastBuffer: 1024,
		LockTTL:         30 * time.Second,
		Redis: RedisConfig{
			URL:          os.Getenv("CASEFLOW_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
	if seeds := os.Getenv("CASEFLOW_KAFKA_SEEDS"); seeds != "" {
		cfg.KafkaSeeds = strings.Split(seeds, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
