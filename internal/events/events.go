// Package events announces accepted registrations to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"starkshield/internal/platform/kafka/producer"
	"starkshield/internal/predicate"
)

// DefaultTopic carries submission events.
const DefaultTopic = "starkshield.submissions"

// SubmissionEvent describes one accepted registration.
type SubmissionEvent struct {
	TxHash       string         `json:"tx_hash"`
	Nullifier    string         `json:"nullifier"`
	Predicate    predicate.Type `json:"predicate"`
	CircuitID    uint8          `json:"circuit_id"`
	AttributeKey string         `json:"attribute_key"`
	Threshold    string         `json:"threshold_or_set_hash"`
	RunID        string         `json:"run_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Publisher delivers submission events.
type Publisher interface {
	PublishSubmission(ctx context.Context, ev SubmissionEvent) error
}

// Producer is the subset of the Kafka producer the publisher needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaPublisher writes events keyed by nullifier so every event for a
// nullifier lands on one partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

type Option func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

func WithTopic(topic string) Option {
	return func(p *KafkaPublisher) {
		if topic != "" {
			p.topic = topic
		}
	}
}

func NewKafkaPublisher(prod Producer, opts ...Option) *KafkaPublisher {
	p := &KafkaPublisher{producer: prod, topic: DefaultTopic, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *KafkaPublisher) PublishSubmission(ctx context.Context, ev SubmissionEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode submission event: %w", err)
	}
	msg := &producer.Message{
		Topic: p.topic,
		Key:   []byte(ev.Nullifier),
		Value: value,
		Headers: map[string]string{
			"event_type": "submission.accepted",
			"predicate":  ev.Predicate.String(),
		},
	}
	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("publish submission event: %w", err)
	}
	p.logger.DebugContext(ctx, "submission event published", "topic", p.topic, "tx_hash", ev.TxHash)
	return nil
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) PublishSubmission(context.Context, SubmissionEvent) error {
	return nil
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
