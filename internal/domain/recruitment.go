package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecruitmentState is the aggregate root for a single study's recruitment.
// It owns the full cohort history; the cohort referenced by CurrentCohortID
// is the only mutable cohort at any point in time.
type RecruitmentState struct {
	// StudyID identifies the study. Immutable after initialization.
	StudyID string `json:"study_id"`

	// Status is the current recruitment lifecycle status.
	Status RecruitmentStatus `json:"status"`

	// TargetParticipants is the total headcount the study recruits toward.
	// Set at initialization, immutable thereafter.
	TargetParticipants int `json:"target_participants"`

	// TotalEnrolled is the sum of all finalized cohort sizes. Monotonically
	// non-decreasing.
	TotalEnrolled int `json:"total_enrolled"`

	// WaitlistCount is the size of the prospective-participant pool. It grows
	// via ledger events and is never consumed by enrollment.
	WaitlistCount int `json:"waitlist_count"`

	// ConversionRate is the assumed waitlist-to-enrollment conversion, in
	// (0, 1]. Used only for projection, never enforced.
	ConversionRate float64 `json:"conversion_rate"`

	// CurrentWindowEnrolled counts provisional enrollments in the window
	// currently open or just closed. Reset to 0 when a cohort is finalized.
	CurrentWindowEnrolled int `json:"current_window_enrolled"`

	// CurrentWindowEndsAt is the deadline of the open window, nil when no
	// window is open.
	CurrentWindowEndsAt *time.Time `json:"current_window_ends_at,omitempty"`

	// CurrentCohortID is a weak reference to the cohort being formed or
	// shipped. Nil only in waitlist_only before any window has opened.
	CurrentCohortID *uuid.UUID `json:"current_cohort_id,omitempty"`

	// Cohorts is the append-only cohort history in cohort-number order.
	Cohorts []*Cohort `json:"cohorts"`

	// WaitlistGrowth records timestamped waitlist additions, used to derive
	// weekly-change and new-vs-returning splits in waitlist stats.
	WaitlistGrowth []WaitlistGrowthEntry `json:"waitlist_growth,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WaitlistGrowthEntry is a single timestamped waitlist addition.
type WaitlistGrowthEntry struct {
	Count      int       `json:"count"`
	RecordedAt time.Time `json:"recorded_at"`
}

// CurrentCohort returns the cohort referenced by CurrentCohortID, or nil.
func (s *RecruitmentState) CurrentCohort() *Cohort {
	if s.CurrentCohortID == nil {
		return nil
	}
	for _, c := range s.Cohorts {
		if c.ID == *s.CurrentCohortID {
			return c
		}
	}
	return nil
}

// RemainingSlots returns how many participants the study can still enroll.
func (s *RecruitmentState) RemainingSlots() int {
	return s.TargetParticipants - s.TotalEnrolled
}

// WindowTimeRemaining returns the time until the open window's deadline,
// clamped at zero. Returns 0 when no window is open.
func (s *RecruitmentState) WindowTimeRemaining(now time.Time) time.Duration {
	if s.CurrentWindowEndsAt == nil {
		return 0
	}
	remaining := s.CurrentWindowEndsAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WindowExpired reports whether a window is open and past its deadline.
func (s *RecruitmentState) WindowExpired(now time.Time) bool {
	return s.Status == StatusWindowOpen &&
		s.CurrentWindowEndsAt != nil &&
		now.After(*s.CurrentWindowEndsAt)
}

// CheckCapacity verifies the core headcount invariant:
// totalEnrolled + currentWindowEnrolled <= targetParticipants.
func (s *RecruitmentState) CheckCapacity() bool {
	return s.TotalEnrolled+s.CurrentWindowEnrolled <= s.TargetParticipants
}

// Clone returns a deep copy of the state. Transitions mutate a clone and the
// caller receives an independent snapshot, so a failed persistence write never
// leaks a partially mutated aggregate.
func (s *RecruitmentState) Clone() *RecruitmentState {
	if s == nil {
		return nil
	}
	clone := *s
	if s.CurrentWindowEndsAt != nil {
		t := *s.CurrentWindowEndsAt
		clone.CurrentWindowEndsAt = &t
	}
	if s.CurrentCohortID != nil {
		id := *s.CurrentCohortID
		clone.CurrentCohortID = &id
	}
	clone.Cohorts = make([]*Cohort, len(s.Cohorts))
	for i, c := range s.Cohorts {
		clone.Cohorts[i] = c.Clone()
	}
	if s.WaitlistGrowth != nil {
		clone.WaitlistGrowth = make([]WaitlistGrowthEntry, len(s.WaitlistGrowth))
		copy(clone.WaitlistGrowth, s.WaitlistGrowth)
	}
	return &clone
}

// NewRecruitmentState creates the initial state for a study.
func NewRecruitmentState(studyID string, targetParticipants, waitlistSeed, enrolledSeed int, now time.Time) *RecruitmentState {
	return &RecruitmentState{
		StudyID:            studyID,
		Status:             StatusWaitlistOnly,
		TargetParticipants: targetParticipants,
		TotalEnrolled:      enrolledSeed,
		WaitlistCount:      waitlistSeed,
		ConversionRate:     DefaultConversionRate,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
