package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Envelope is the record value published for every outbound message.
type Envelope struct {
	ID     string    `json:"id"`
	To     string    `json:"to"`
	SentAt time.Time `json:"sent_at"`
	Message
}

// Producer is the subset of *kgo.Client the messenger needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaMessenger publishes one record per message, keyed by recipient so a
// participant's messages stay ordered within a partition.
type KafkaMessenger struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	now      func() time.Time
}

type KafkaOption func(*KafkaMessenger)

func WithLogger(logger *slog.Logger) KafkaOption {
	return func(m *KafkaMessenger) {
		m.logger = logger
	}
}

func WithClock(now func() time.Time) KafkaOption {
	return func(m *KafkaMessenger) {
		m.now = now
	}
}

func NewKafkaMessenger(producer Producer, topic string, opts ...KafkaOption) (*KafkaMessenger, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	m := &KafkaMessenger{
		producer: producer,
		topic:    topic,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *KafkaMessenger) Send(ctx context.Context, to string, msg Message) error {
	env := Envelope{
		ID:      uuid.NewString(),
		To:      to,
		SentAt:  m.now().UTC(),
		Message: msg,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}
	rec := &kgo.Record{
		Topic: m.topic,
		Key:   []byte(to),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	}
	if err := m.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish outbound message",
			"to", to,
			"message_id", env.ID,
			"error", err,
		)
		return fmt.Errorf("publish outbound message: %w", err)
	}
	return nil
}

// NewKafkaClient connects a producer client to brokers.
func NewKafkaClient(brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates topic unless it already exists.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
