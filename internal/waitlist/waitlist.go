// Package waitlist derives projection figures from a study's waitlist ledger.
//
// The waitlist is advisory: it feeds enrollment projections and recruiter
// guidance but is never consumed by enrollment itself. All figures here are
// derived from the recruitment state and recomputed on demand.
package waitlist

import (
	"math"
	"time"

	"github.com/trialkit/recruitment-service/internal/domain"
)

// Guidance thresholds surfaced alongside stats. Advisory only; no command
// enforces them.
const (
	// MinWaitlistToRecruit is the waitlist size below which opening a window
	// is discouraged.
	MinWaitlistToRecruit = 10

	// MinRecommendedCohortSize is the smallest cohort worth shipping.
	MinRecommendedCohortSize = 10
)

// weeklyWindow is the lookback used for the weekly-change figure.
const weeklyWindow = 7 * 24 * time.Hour

// Stats is the derived waitlist view for a study.
type Stats struct {
	// Count is the current waitlist size.
	Count int `json:"count"`

	// WeeklyChange is the number of waitlist additions in the last 7 days.
	WeeklyChange int `json:"weekly_change"`

	// NewUsers is the portion of the waitlist added in the last 7 days.
	NewUsers int `json:"new_users"`

	// ReturningUsers is the portion of the waitlist older than 7 days.
	ReturningUsers int `json:"returning_users"`

	// ProjectedEnrollments is the expected yield if a window opened now,
	// round(count * conversion rate).
	ProjectedEnrollments int `json:"projected_enrollments"`

	// ConversionRate is the assumed waitlist-to-enrollment conversion.
	ConversionRate float64 `json:"conversion_rate"`

	// ReadyToRecruit reports whether the waitlist meets the advisory minimum.
	ReadyToRecruit bool `json:"ready_to_recruit"`
}

// ExpectedEnrollments returns the projected yield if a window opened at the
// current state: round(waitlist * conversion). The figure is advisory and is
// not bounded by remaining capacity; the engine clamps actual enrollments at
// close time.
func ExpectedEnrollments(state *domain.RecruitmentState) int {
	return int(math.Round(float64(state.WaitlistCount) * state.ConversionRate))
}

// Derive computes the full stats view from a recruitment state at the given
// instant.
func Derive(state *domain.RecruitmentState, now time.Time) Stats {
	weeklyChange := 0
	cutoff := now.Add(-weeklyWindow)
	for _, entry := range state.WaitlistGrowth {
		if entry.RecordedAt.After(cutoff) {
			weeklyChange += entry.Count
		}
	}

	newUsers := weeklyChange
	if newUsers > state.WaitlistCount {
		newUsers = state.WaitlistCount
	}

	return Stats{
		Count:                state.WaitlistCount,
		WeeklyChange:         weeklyChange,
		NewUsers:             newUsers,
		ReturningUsers:       state.WaitlistCount - newUsers,
		ProjectedEnrollments: ExpectedEnrollments(state),
		ConversionRate:       state.ConversionRate,
		ReadyToRecruit:       state.WaitlistCount >= MinWaitlistToRecruit,
	}
}
