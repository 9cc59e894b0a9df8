// Package notify publishes citation decision events.
//
// Events are emitted after a citing paper reaches a final decision:
// citation.accepted once its summary is written, citation.rejected when it
// is classified as working on a different task. Publishing is best-effort;
// the ledger remains the source of truth.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/citation-tracker-service/internal/domain"
)

// Publisher delivers citation events.
type Publisher interface {
	Publish(ctx context.Context, event *domain.CitationEvent) error
	Close() error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, *domain.CitationEvent) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// KafkaConfig configures a KafkaPublisher.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic receives every citation event.
	Topic string
	// BatchSize is the writer batch size.
	BatchSize int
	// BatchTimeout bounds how long a partial batch waits.
	BatchTimeout time.Duration
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by paper id.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka-go Writer.
func NewKafkaPublisher(cfg KafkaConfig, logger zerolog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return newKafkaPublisher(writer, cfg.Topic, logger), nil
}

func newKafkaPublisher(writer messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.With().Str("component", "kafka_publisher").Str("topic", topic).Logger(),
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.CitationEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}

	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("event_type", event.EventType).
		Str("paper_id", event.AggregateID).
		Msg("event published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
