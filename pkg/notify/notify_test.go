package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/commerce-export/pkg/config"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafka_Notify(t *testing.T) {
	w := &fakeWriter{}
	k := NewKafka(w)
	now := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return now }

	e := Event{
		RunID:      "run-1",
		Export:     "nightly",
		ProjectKey: "shop-42",
		Status:     StatusSucceeded,
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
		Artifacts:  []string{"purchases.csv", "catalog.xml"},
		Purchases:  2,
		FeedItems:  1,
	}
	require.NoError(t, k.Notify(context.Background(), e))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "shop-42", string(msg.Key))
	assert.Equal(t, now, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "export.succeeded", string(msg.Headers[0].Value))

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, e.RunID, got.RunID)
	assert.Equal(t, e.Artifacts, got.Artifacts)
	assert.True(t, e.StartedAt.Equal(got.StartedAt))
	assert.NotContains(t, string(msg.Value), `"error"`)

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestKafka_NotifyError(t *testing.T) {
	k := NewKafka(&fakeWriter{err: errors.New("broker down")})
	err := k.Notify(context.Background(), Event{Status: StatusFailed, Error: "boom"})
	assert.ErrorContains(t, err, "broker down")
}

func TestNew(t *testing.T) {
	assert.IsType(t, Nop{}, New(config.Notify{}))

	n := New(config.Notify{Kafka: &config.Kafka{Brokers: []string{"localhost:9092"}, Topic: "exports"}})
	require.IsType(t, &Kafka{}, n)
	w := n.(*Kafka).writer.(*kafka.Writer)
	assert.Equal(t, "exports", w.Topic)
	assert.NoError(t, n.Close())
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), Event{}))
	assert.NoError(t, Nop{}.Close())
}
