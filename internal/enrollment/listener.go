package enrollment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/trialkit/recruitment-service/internal/domain"
)

// SignupEvent is the wire format of an enrollment signup published by the
// participant-facing apps.
type SignupEvent struct {
	StudyID       string `json:"study_id"`
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name,omitempty"`
}

// Enroller accepts participants into a study's open window. Implemented by
// the recruitment engine.
type Enroller interface {
	EnrollParticipants(ctx context.Context, studyID string, participants []Participant) (int, error)
}

// Listener consumes signup events from Kafka and enrolls them into the
// study's open recruitment window.
type Listener struct {
	reader   *kafka.Reader
	enroller Enroller
	logger   zerolog.Logger
}

// ListenerConfig holds configuration for the enrollment listener.
type ListenerConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic for signup events.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// NewListener creates a new enrollment signup listener.
func NewListener(cfg ListenerConfig, enroller Enroller, logger zerolog.Logger) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})

	return &Listener{
		reader:   reader,
		enroller: enroller,
		logger:   logger.With().Str("component", "enrollment_listener").Logger(),
	}
}

// Run starts the listener loop. Blocks until context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting enrollment listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("enrollment listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received signup event")

		var event SignupEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			l.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to unmarshal signup event")
			continue
		}

		if err := l.handleSignup(ctx, event); err != nil {
			l.logger.Error().Err(err).
				Str("study_id", event.StudyID).
				Str("participant_id", event.ParticipantID).
				Msg("failed to handle signup event")
		}
	}
}

// handleSignup enrolls the signup into the study's open window. Signups for
// studies without an open window are rejected by the engine and dropped here;
// the participant stays on the waitlist.
func (l *Listener) handleSignup(ctx context.Context, event SignupEvent) error {
	if event.StudyID == "" || event.ParticipantID == "" {
		l.logger.Warn().
			Str("study_id", event.StudyID).
			Str("participant_id", event.ParticipantID).
			Msg("dropping signup event with missing identifiers")
		return nil
	}

	enrolled, err := l.enroller.EnrollParticipants(ctx, event.StudyID, []Participant{{
		ID:          event.ParticipantID,
		DisplayName: event.DisplayName,
	}})
	if err != nil {
		// No open window or unknown study: the signup stays on the waitlist
		// and the event is dropped, not retried.
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrStudyNotFound) {
			l.logger.Debug().Err(err).
				Str("study_id", event.StudyID).
				Str("participant_id", event.ParticipantID).
				Msg("signup dropped")
			return nil
		}
		return err
	}

	if enrolled == 0 {
		l.logger.Debug().
			Str("study_id", event.StudyID).
			Str("participant_id", event.ParticipantID).
			Msg("signup not enrolled, window full or closed")
		return nil
	}

	l.logger.Info().
		Str("study_id", event.StudyID).
		Str("participant_id", event.ParticipantID).
		Msg("enrolled signup into open window")
	return nil
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing enrollment listener")
	return l.reader.Close()
}
