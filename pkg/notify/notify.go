// Package notify publishes a run-completed event after each export run.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/saturnines/commerce-export/pkg/config"
)

// Run statuses
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Event describes one finished run.
type Event struct {
	RunID      string    `json:"run_id"`
	Export     string    `json:"export"`
	ProjectKey string    `json:"project_key"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Artifacts  []string  `json:"artifacts"`
	Purchases  int       `json:"purchases"`
	FeedItems  int       `json:"feed_items"`
}

// Notifier delivers run events
type Notifier interface {
	Notify(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }

// MessageWriter is the part of kafka.Writer the notifier needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events as JSON keyed by project key, so the events of one
// project stay ordered on one partition.
type Kafka struct {
	writer MessageWriter
	now    func() time.Time
}

func NewKafka(w MessageWriter) *Kafka {
	return &Kafka{writer: w, now: time.Now}
}

// NewKafkaWriter builds a synchronous writer for brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func (k *Kafka) Notify(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.ProjectKey),
		Value: value,
		Time:  k.now(),
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("export." + e.Status)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// New returns the notifier configured by cfg, Nop when none is.
func New(cfg config.Notify) Notifier {
	if cfg.Kafka == nil {
		return Nop{}
	}
	return NewKafka(NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
}
