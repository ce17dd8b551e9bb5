// Package events publishes recruitment lifecycle events to Kafka.
//
// Publishing is best-effort: a broker outage must never fail or delay the
// command that produced the event. Failures are logged and counted, and the
// event is dropped.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/trialkit/recruitment-service/internal/domain"
	"github.com/trialkit/recruitment-service/internal/observability"
)

// publishTimeout bounds a single publish attempt so a slow broker cannot
// stall the caller's goroutine indefinitely.
const publishTimeout = 5 * time.Second

// Publisher emits recruitment lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event domain.RecruitmentEvent)
	Close() error
}

// KafkaPublisher publishes events to a Kafka topic, keyed by study ID so a
// study's events stay ordered within a partition.
type KafkaPublisher struct {
	writer  *kafka.Writer
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// PublisherConfig holds configuration for the Kafka publisher.
type PublisherConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic lifecycle events are published to.
	Topic string
	// BatchTimeout is the maximum time to wait for a batch to fill.
	BatchTimeout time.Duration
}

// NewKafkaPublisher creates a new Kafka-backed event publisher.
func NewKafkaPublisher(cfg PublisherConfig, metrics *observability.Metrics, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer:  writer,
		metrics: metrics,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish serializes and sends the event. Errors are logged and swallowed.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.RecruitmentEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).
			Str("event_type", event.EventType).
			Str("study_id", event.StudyID).
			Msg("failed to marshal event")
		p.recordFailed(event.EventType)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.StudyID),
		Value: value,
	})
	if err != nil {
		p.logger.Error().Err(err).
			Str("event_type", event.EventType).
			Str("study_id", event.StudyID).
			Msg("failed to publish event")
		p.recordFailed(event.EventType)
		return
	}

	if p.metrics != nil {
		p.metrics.RecordEventPublished(event.EventType)
	}
	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("study_id", event.StudyID).
		Msg("published event")
}

// recordFailed counts a failed publish. Metrics are optional.
func (p *KafkaPublisher) recordFailed(eventType string) {
	if p.metrics != nil {
		p.metrics.RecordEventFailed(eventType)
	}
}

// Close flushes and closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info().Msg("closing event publisher")
	return p.writer.Close()
}

// NoopPublisher drops all events. Used when Kafka is disabled.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that drops all events.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Publish drops the event.
func (p *NoopPublisher) Publish(ctx context.Context, event domain.RecruitmentEvent) {}

// Close is a no-op.
func (p *NoopPublisher) Close() error { return nil }

// Compile-time interface verification.
var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = (*NoopPublisher)(nil)
)
