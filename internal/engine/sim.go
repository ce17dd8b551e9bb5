package engine

import (
	"context"
	"time"

	"github.com/trialkit/recruitment-service/internal/domain"
)

// Simulator is the demo/test command surface. It is deliberately separate
// from the production transition graph: the HTTP layer mounts it only when
// simulation is enabled in configuration.
type Simulator interface {
	SimulateEnrollment(ctx context.Context, studyID string, n int) (*domain.RecruitmentState, error)
	SimulateWaitlistGrowth(ctx context.Context, studyID string, n int) (*domain.RecruitmentState, error)
	ResetStore(ctx context.Context) error
}

// SimulateEnrollment enrolls n generated participants into the open window,
// clamped to the remaining study capacity. A clamp down to zero is a harmless
// no-op, not an error.
func (e *Engine) SimulateEnrollment(ctx context.Context, studyID string, n int) (*domain.RecruitmentState, error) {
	if n < 0 {
		return nil, domain.NewValidationError("n", "must not be negative")
	}

	var accepted int
	state, err := e.apply(ctx, "simulate_enrollment", studyID, func(state *domain.RecruitmentState, now time.Time) ([]domain.RecruitmentEvent, error) {
		if n == 0 {
			return nil, errUnchanged
		}
		if state.Status != domain.StatusWindowOpen {
			return nil, domain.NewInvalidTransitionError(studyID, "simulate_enrollment", state.Status, "no window is open")
		}

		want := n
		if capacity := state.TargetParticipants - state.TotalEnrolled - state.CurrentWindowEnrolled; want > capacity {
			want = capacity
		}
		if want <= 0 {
			return nil, errUnchanged
		}

		participants, err := e.source.Participants(ctx, studyID, want)
		if err != nil {
			return nil, err
		}
		got, err := enrollIntoWindow(state, participants, "simulate_enrollment", now)
		if err != nil {
			return nil, err
		}
		if got == 0 {
			return nil, errUnchanged
		}
		accepted = got
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	if accepted > 0 && e.metrics != nil {
		e.metrics.RecordEnrollments("simulated", accepted)
	}
	return state, nil
}

// SimulateWaitlistGrowth adds n prospective participants to the study's
// waitlist ledger. Valid in any non-terminal status; never changes status.
func (e *Engine) SimulateWaitlistGrowth(ctx context.Context, studyID string, n int) (*domain.RecruitmentState, error) {
	if n < 0 {
		return nil, domain.NewValidationError("n", "must not be negative")
	}
	return e.apply(ctx, "simulate_waitlist_growth", studyID, func(state *domain.RecruitmentState, now time.Time) ([]domain.RecruitmentEvent, error) {
		if state.Status.IsTerminal() {
			return nil, domain.NewInvalidTransitionError(studyID, "simulate_waitlist_growth", state.Status, "recruitment is complete")
		}
		if n == 0 {
			return nil, errUnchanged
		}
		state.WaitlistCount += n
		state.WaitlistGrowth = append(state.WaitlistGrowth, domain.WaitlistGrowthEntry{
			Count:      n,
			RecordedAt: now,
		})
		return nil, nil
	})
}

// ResetStore clears all recruitment state for all studies.
func (e *Engine) ResetStore(ctx context.Context) error {
	start := time.Now()
	err := e.store.Reset(ctx)
	if err != nil {
		e.recordCommand("reset_store", "store_error", start)
		return err
	}
	e.recordCommand("reset_store", "success", start)
	e.logger.Warn().Msg("recruitment store reset")
	return nil
}

var _ Simulator = (*Engine)(nil)
