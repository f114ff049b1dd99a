package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	OwnerID       string
	JWTSigningKey string
	LogLevel      string
	BlacklistPath string
	KVBackend     string
	Messaging     string

	Redis    RedisConfig
	Badger   BadgerConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Matching MatchingConfig
}

// RedisConfig configures the Redis kv backend.
type RedisConfig struct {
	URL          string
	Namespace    string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BadgerConfig configures the embedded kv backend.
type BadgerConfig struct {
	Path       string
	GCInterval time.Duration
}

// PostgresConfig configures the Postgres kv backend.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
}

// KafkaConfig configures the outbound message publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// MatchingConfig selects and bounds the matching strategy.
type MatchingConfig struct {
	Strategy       string
	TimeBudget     time.Duration
	ShuffleRetries int
	ExactLimit     int
}

const (
	KVMemory   = "memory"
	KVRedis    = "redis"
	KVBadger   = "badger"
	KVPostgres = "postgres"

	MessagingLog   = "log"
	MessagingKafka = "kafka"

	StrategyTSP     = "tsp"
	StrategyShuffle = "shuffle"
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          envOr("SANTA_ADDR", ":8080"),
		OwnerID:       os.Getenv("OWNER_ID"),
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		BlacklistPath: envOr("BLACKLIST_PATH", "./blacklist.txt"),
		KVBackend:     envOr("KV_BACKEND", KVBadger),
		Messaging:     envOr("MESSAGING_BACKEND", MessagingLog),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			Namespace:    envOr("REDIS_NAMESPACE", "santa:"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Badger: BadgerConfig{
			Path:       envOr("BADGER_PATH", "./localstorage"),
			GCInterval: envDuration("BADGER_GC_INTERVAL", 5*time.Minute),
		},
		Postgres: PostgresConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 5),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_TOPIC", "santa.outbound"),
		},
		Matching: MatchingConfig{
			Strategy:       envOr("MATCHING_STRATEGY", StrategyTSP),
			TimeBudget:     envDuration("MATCHING_TIME_BUDGET", time.Second),
			ShuffleRetries: envInt("MATCHING_SHUFFLE_RETRIES", 1000),
			ExactLimit:     envInt("MATCHING_EXACT_LIMIT", 16),
		},
	}

	if cfg.OwnerID == "" {
		return Server{}, errors.New("OWNER_ID is required")
	}
	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	switch cfg.KVBackend {
	case KVMemory, KVBadger:
	case KVRedis:
		if cfg.Redis.URL == "" {
			return Server{}, errors.New("REDIS_URL is required for the redis kv backend")
		}
	case KVPostgres:
		if cfg.Postgres.URL == "" {
			return Server{}, errors.New("DATABASE_URL is required for the postgres kv backend")
		}
	default:
		return Server{}, errors.New("unknown KV_BACKEND " + strconv.Quote(cfg.KVBackend))
	}
	switch cfg.Messaging {
	case MessagingLog:
	case MessagingKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return Server{}, errors.New("KAFKA_BROKERS is required for the kafka messaging backend")
		}
	default:
		return Server{}, errors.New("unknown MESSAGING_BACKEND " + strconv.Quote(cfg.Messaging))
	}
	switch cfg.Matching.Strategy {
	case StrategyTSP, StrategyShuffle:
	default:
		return Server{}, errors.New("unknown MATCHING_STRATEGY " + strconv.Quote(cfg.Matching.Strategy))
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
