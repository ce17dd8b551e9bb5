// Package domain provides domain models and business logic for the Recruitment Service.
package domain

// RecruitmentStatus represents the lifecycle states of a study's recruitment.
// These values must match the database enum recruitment_status.
type RecruitmentStatus string

const (
	StatusWaitlistOnly RecruitmentStatus = "waitlist_only"
	StatusWindowOpen   RecruitmentStatus = "window_open"
	StatusWindowClosed RecruitmentStatus = "window_closed"
	StatusReadyToOpen  RecruitmentStatus = "ready_to_open"
	StatusComplete     RecruitmentStatus = "complete"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s RecruitmentStatus) IsTerminal() bool {
	return s == StatusComplete
}

// IsValidRecruitmentStatus reports whether s is a known recruitment status value.
func IsValidRecruitmentStatus(s RecruitmentStatus) bool {
	switch s {
	case StatusWaitlistOnly, StatusWindowOpen, StatusWindowClosed, StatusReadyToOpen, StatusComplete:
		return true
	default:
		return false
	}
}

// CohortStatus represents the lifecycle states of a shipping cohort.
// These values must match the database enum cohort_status.
type CohortStatus string

const (
	CohortStatusRecruiting          CohortStatus = "recruiting"
	CohortStatusCollectingAddresses CohortStatus = "collecting_addresses"
	CohortStatusPendingShipment     CohortStatus = "pending_shipment"
	CohortStatusShipping            CohortStatus = "shipping"
	CohortStatusComplete            CohortStatus = "complete"
)

// IsTerminal returns true if the cohort status is final.
func (s CohortStatus) IsTerminal() bool {
	return s == CohortStatusComplete
}

// StudyStatus represents a study's publication status in the study catalogue.
// The catalogue is an external collaborator; only these values are relevant
// to recruitment.
type StudyStatus string

const (
	StudyStatusDraft      StudyStatus = "draft"
	StudyStatusComingSoon StudyStatus = "coming_soon"
	StudyStatusActive     StudyStatus = "active"
)

// DefaultConversionRate is the assumed fraction of the waitlist that converts
// to enrolled participants when a window opens. Used only for projection.
const DefaultConversionRate = 0.35
