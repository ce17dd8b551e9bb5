package httpserver

import (
	"time"

	"github.com/trialkit/recruitment-service/internal/domain"
	"github.com/trialkit/recruitment-service/internal/waitlist"
)

// Response types for JSON serialization.

type stateResponse struct {
	StudyID               string           `json:"study_id"`
	Status                string           `json:"status"`
	TargetParticipants    int              `json:"target_participants"`
	TotalEnrolled         int              `json:"total_enrolled"`
	RemainingSlots        int              `json:"remaining_slots"`
	WaitlistCount         int              `json:"waitlist_count"`
	ConversionRate        float64          `json:"conversion_rate"`
	CurrentWindowEnrolled int              `json:"current_window_enrolled"`
	CurrentWindowEndsAt   *time.Time       `json:"current_window_ends_at,omitempty"`
	WindowSecondsLeft     int64            `json:"window_seconds_left,omitempty"`
	CurrentCohortID       string           `json:"current_cohort_id,omitempty"`
	Cohorts               []cohortResponse `json:"cohorts"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

type cohortResponse struct {
	ID                   string    `json:"id"`
	CohortNumber         int       `json:"cohort_number"`
	Status               string    `json:"status"`
	Size                 int       `json:"size"`
	TrackingCodesEntered int       `json:"tracking_codes_entered"`
	AllTrackingEntered   bool      `json:"all_tracking_entered"`
	DeliveredCount       int       `json:"delivered_count"`
	AvgShipTimeDays      float64   `json:"avg_ship_time_days"`
	CreatedAt            time.Time `json:"created_at"`
}

type participantResponse struct {
	ParticipantID  string         `json:"participant_id"`
	DisplayName    string         `json:"display_name,omitempty"`
	Address        domain.Address `json:"address"`
	TrackingNumber string         `json:"tracking_number,omitempty"`
	ShippedAt      *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
}

type listParticipantsResponse struct {
	CohortID     string                `json:"cohort_id"`
	Participants []participantResponse `json:"participants"`
	TotalCount   int                   `json:"total_count"`
}

type listStudiesResponse struct {
	Studies    []stateResponse `json:"studies"`
	TotalCount int             `json:"total_count"`
}

type waitlistStatsResponse struct {
	waitlist.Stats
	MinWaitlistToRecruit     int `json:"min_waitlist_to_recruit"`
	MinRecommendedCohortSize int `json:"min_recommended_cohort_size"`
}

// Converter functions

func stateToResponse(state *domain.RecruitmentState, now time.Time) stateResponse {
	cohorts := make([]cohortResponse, len(state.Cohorts))
	for i, c := range state.Cohorts {
		cohorts[i] = cohortToResponse(c)
	}
	resp := stateResponse{
		StudyID:               state.StudyID,
		Status:                string(state.Status),
		TargetParticipants:    state.TargetParticipants,
		TotalEnrolled:         state.TotalEnrolled,
		RemainingSlots:        state.RemainingSlots(),
		WaitlistCount:         state.WaitlistCount,
		ConversionRate:        state.ConversionRate,
		CurrentWindowEnrolled: state.CurrentWindowEnrolled,
		CurrentWindowEndsAt:   state.CurrentWindowEndsAt,
		Cohorts:               cohorts,
		CreatedAt:             state.CreatedAt,
		UpdatedAt:             state.UpdatedAt,
	}
	if state.CurrentCohortID != nil {
		resp.CurrentCohortID = state.CurrentCohortID.String()
	}
	if remaining := state.WindowTimeRemaining(now); remaining > 0 {
		resp.WindowSecondsLeft = int64(remaining.Seconds())
	}
	return resp
}

func cohortToResponse(c *domain.Cohort) cohortResponse {
	return cohortResponse{
		ID:                   c.ID.String(),
		CohortNumber:         c.CohortNumber,
		Status:               string(c.Status),
		Size:                 c.Size(),
		TrackingCodesEntered: c.TrackingCodesEntered,
		AllTrackingEntered:   c.AllTrackingEntered,
		DeliveredCount:       c.DeliveredCount,
		AvgShipTimeDays:      c.AvgShipTimeDays,
		CreatedAt:            c.CreatedAt,
	}
}

func participantToResponse(p *domain.ParticipantShipping) participantResponse {
	return participantResponse{
		ParticipantID:  p.ParticipantID,
		DisplayName:    p.DisplayName,
		Address:        p.Address,
		TrackingNumber: p.TrackingNumber,
		ShippedAt:      p.ShippedAt,
		DeliveredAt:    p.DeliveredAt,
	}
}
