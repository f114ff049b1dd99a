package main

import (
	"context"
	"fmt"
	"log/slog"

	"secretsanta/internal/kv"
	"secretsanta/internal/matching"
	"secretsanta/internal/messaging"
	platformbadger "secretsanta/internal/platform/badger"
	"secretsanta/internal/platform/config"
	"secretsanta/internal/platform/postgres"
	"secretsanta/internal/platform/redis"
)

const (
	kafkaPartitions  = 3
	kafkaReplication = 1
)

// openStore opens the configured kv backend. The returned func releases it.
func openStore(ctx context.Context, cfg config.Server, log *slog.Logger) (kv.Store, func(), error) {
	switch cfg.KVBackend {
	case config.KVMemory:
		log.Warn("using in-memory kv store; state is lost on restart")
		return kv.NewInMemory(), func() {}, nil

	case config.KVRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewRedis(client.Client, kv.WithNamespace(cfg.Redis.Namespace)), func() {
			if err := client.Close(); err != nil {
				log.Warn("failed to close redis client", "error", err)
			}
		}, nil

	case config.KVPostgres:
		db, err := postgres.Open(ctx, postgres.Config{
			URL:          cfg.Postgres.URL,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxOpenConns,
		})
		if err != nil {
			return nil, nil, err
		}
		store := kv.NewPostgres(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure kv schema: %w", err)
		}
		return store, func() {
			if err := db.Close(); err != nil {
				log.Warn("failed to close postgres pool", "error", err)
			}
		}, nil

	default:
		bcfg := platformbadger.DefaultConfig(cfg.Badger.Path)
		bcfg.GCInterval = cfg.Badger.GCInterval
		bcfg.Logger = log
		db, err := platformbadger.Open(bcfg)
		if err != nil {
			return nil, nil, err
		}
		stopGC := make(chan struct{})
		go platformbadger.RunGC(db, bcfg.GCInterval, bcfg.GCDiscardRatio, log, stopGC)
		return kv.NewBadger(db), func() {
			close(stopGC)
			if err := db.Close(); err != nil {
				log.Warn("failed to close badger", "error", err)
			}
		}, nil
	}
}

// newEngine builds the matching engine for the configured strategy.
func newEngine(cfg config.MatchingConfig, log *slog.Logger) (*matching.Engine, error) {
	var strategy matching.Strategy
	switch cfg.Strategy {
	case config.StrategyShuffle:
		strategy = matching.NewShuffle(cfg.ShuffleRetries)
	default:
		strategy = matching.NewTSP(cfg.ExactLimit)
	}
	return matching.NewEngine(strategy,
		matching.WithLogger(log),
		matching.WithTimeBudget(cfg.TimeBudget),
	)
}

// openMessenger builds the outbound message sink. Kafka sends fall back to the
// log while the broker keeps failing. The returned func flushes and releases
// the client.
func openMessenger(ctx context.Context, cfg config.Server, log *slog.Logger) (messaging.Messenger, func(), error) {
	if cfg.Messaging != config.MessagingKafka {
		return messaging.NewLogMessenger(log), func() {}, nil
	}
	client, err := messaging.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	if err := messaging.EnsureTopic(ctx, client, cfg.Kafka.Topic, kafkaPartitions, kafkaReplication); err != nil {
		client.Close()
		return nil, nil, err
	}
	kafka, err := messaging.NewKafkaMessenger(client, cfg.Kafka.Topic, messaging.WithLogger(log))
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	messenger := messaging.NewBreakerMessenger(kafka, messaging.NewLogMessenger(log),
		messaging.WithBreakerLogger(log),
	)
	return messenger, func() {
		if err := client.Flush(context.Background()); err != nil {
			log.Warn("failed to flush kafka producer", "error", err)
		}
		client.Close()
	}, nil
}
