package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialkit/recruitment-service/internal/domain"
)

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher()

	event := domain.NewRecruitmentEvent(domain.EventTypeWindowOpened, "study-1", nil)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), event)
	})
	assert.NoError(t, p.Close())
}

func TestKafkaPublisher_NilMetrics(t *testing.T) {
	p := NewKafkaPublisher(PublisherConfig{
		Brokers: []string{"localhost:0"},
		Topic:   "recruitment.events",
	}, nil, zerolog.Nop())
	defer p.Close()

	// An unmarshalable payload fails before any broker I/O; the failure
	// counter must tolerate absent metrics.
	event := domain.NewRecruitmentEvent(domain.EventTypeWindowOpened, "study-1", map[string]interface{}{
		"bad": make(chan int),
	})

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), event)
	})
}

func TestEventSerialization(t *testing.T) {
	event := domain.NewRecruitmentEvent(domain.EventTypeCohortFormed, "study-1", map[string]interface{}{
		"cohort_number": 2,
		"size":          24,
	})

	require.NotEmpty(t, event.EventID)
	assert.Equal(t, "study-1", event.StudyID)
	assert.Equal(t, domain.EventTypeCohortFormed, event.EventType)
	assert.False(t, event.OccurredAt.IsZero())

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_type":"recruitment.cohort_formed"`)
	assert.Contains(t, string(data), `"study_id":"study-1"`)
}
