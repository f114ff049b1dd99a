package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestKafkaMessengerSend(t *testing.T) {
	producer := &fakeProducer{}
	now := time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC)
	m, err := NewKafkaMessenger(producer, "santa.outbound", WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	msg := Text("Who do you want to send this to?",
		Option{Label: "Santa", Data: "santa"},
		Option{Label: "Recipient", Data: "recipient"},
	)
	require.NoError(t, m.Send(context.Background(), "1001", msg))

	require.Len(t, producer.records, 1)
	rec := producer.records[0]
	assert.Equal(t, "santa.outbound", rec.Topic)
	assert.Equal(t, []byte("1001"), rec.Key)
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "text", string(rec.Headers[0].Value))

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Value, &env))
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "1001", env.To)
	assert.True(t, now.Equal(env.SentAt))
	assert.Equal(t, msg, env.Message)
}

func TestKafkaMessengerPublishFailure(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	var buf bytes.Buffer
	m, err := NewKafkaMessenger(producer, "t", WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	require.NoError(t, err)

	err = m.Send(context.Background(), "1", Photo("ph1", "look"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Contains(t, buf.String(), "failed to publish outbound message")
}

func TestNewKafkaMessengerValidates(t *testing.T) {
	_, err := NewKafkaMessenger(nil, "t")
	assert.Error(t, err)
	_, err = NewKafkaMessenger(&fakeProducer{}, "")
	assert.Error(t, err)
}

func TestLogMessenger(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMessenger(slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, m.Send(context.Background(), "42", Text("hello")))
	assert.Contains(t, buf.String(), `"to":"42"`)
	assert.Contains(t, buf.String(), `"text":"hello"`)

	assert.NoError(t, NewLogMessenger(nil).Send(context.Background(), "42", Text("hi")))
}
