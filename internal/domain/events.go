package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event type constants for recruitment lifecycle events.
const (
	EventTypeWindowOpened     = "recruitment.window_opened"
	EventTypeWindowClosed     = "recruitment.window_closed"
	EventTypeCohortFormed     = "recruitment.cohort_formed"
	EventTypeTrackingComplete = "recruitment.tracking_complete"
	EventTypeCohortDelivered  = "recruitment.cohort_delivered"
	EventTypeStudyComplete    = "recruitment.study_complete"
)

// RecruitmentEvent is a lifecycle event published to downstream consumers
// (notification senders, dashboards). Delivery is best-effort; a transition
// never fails because an event could not be published.
type RecruitmentEvent struct {
	EventID    string                 `json:"event_id"`
	StudyID    string                 `json:"study_id"`
	EventType  string                 `json:"event_type"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewRecruitmentEvent creates a lifecycle event for the given study.
func NewRecruitmentEvent(eventType, studyID string, payload map[string]interface{}) RecruitmentEvent {
	return RecruitmentEvent{
		EventID:    uuid.New().String(),
		StudyID:    studyID,
		EventType:  eventType,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// WindowClosedPayload builds the payload for recruitment.window_closed events.
func WindowClosedPayload(cohort *Cohort, totalEnrolled int) map[string]interface{} {
	return map[string]interface{}{
		"cohort_id":      cohort.ID.String(),
		"cohort_number":  cohort.CohortNumber,
		"cohort_size":    cohort.Size(),
		"total_enrolled": totalEnrolled,
	}
}

// TrackingCompletePayload builds the payload for recruitment.tracking_complete events.
func TrackingCompletePayload(cohort *Cohort) map[string]interface{} {
	return map[string]interface{}{
		"cohort_id":     cohort.ID.String(),
		"cohort_number": cohort.CohortNumber,
		"cohort_size":   cohort.Size(),
	}
}
