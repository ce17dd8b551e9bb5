package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trialkit/recruitment-service/internal/domain"
	"github.com/trialkit/recruitment-service/internal/enrollment"
	"github.com/trialkit/recruitment-service/internal/fulfillment"
)

// InitializeStudy creates the recruitment state for a study. Idempotent: when
// a state already exists it is returned unchanged, so UI collaborators can
// call this unconditionally. When targetParticipants is not positive and a
// catalogue client is configured, the target is resolved from the catalogue.
func (e *Engine) InitializeStudy(ctx context.Context, studyID string, targetParticipants, waitlistSeed, enrolledSeed int) (*domain.RecruitmentState, error) {
	start := time.Now()
	if studyID == "" {
		return nil, domain.NewValidationError("study_id", "must not be empty")
	}
	if waitlistSeed < 0 {
		return nil, domain.NewValidationError("waitlist_seed", "must not be negative")
	}
	if enrolledSeed < 0 {
		return nil, domain.NewValidationError("enrolled_seed", "must not be negative")
	}

	lock := e.studyLock(studyID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := e.store.Get(ctx, studyID)
	if err == nil {
		e.recordCommand("initialize_study", "noop", start)
		return existing, nil
	}
	if !isNotFound(err) {
		e.recordCommand("initialize_study", outcomeFor(err), start)
		return nil, err
	}

	if targetParticipants <= 0 && e.catalogue != nil {
		study, err := e.catalogue.Study(ctx, studyID)
		if err != nil {
			e.recordCommand("initialize_study", outcomeFor(err), start)
			return nil, err
		}
		if study.Status == domain.StudyStatusDraft {
			e.recordCommand("initialize_study", "rejected", start)
			return nil, domain.NewValidationError("study_id", "study is still in draft")
		}
		targetParticipants = study.TargetParticipants
	}
	if targetParticipants <= 0 {
		e.recordCommand("initialize_study", "rejected", start)
		return nil, domain.NewValidationError("target_participants", "must be positive")
	}
	if enrolledSeed > targetParticipants {
		e.recordCommand("initialize_study", "rejected", start)
		return nil, domain.NewCapacityExceededError(studyID, targetParticipants, enrolledSeed)
	}

	state := domain.NewRecruitmentState(studyID, targetParticipants, waitlistSeed, enrolledSeed, e.clock())
	if state.TotalEnrolled >= state.TargetParticipants {
		state.Status = domain.StatusComplete
	}

	if err := e.store.Save(ctx, state); err != nil {
		e.recordCommand("initialize_study", "store_error", start)
		return nil, err
	}
	e.recordCommand("initialize_study", "success", start)
	e.logger.Info().
		Str("study_id", studyID).
		Int("target_participants", targetParticipants).
		Int("waitlist_seed", waitlistSeed).
		Msg("study initialized")
	return state, nil
}

// GoLive opens the first recruitment window for a study in waitlist_only.
func (e *Engine) GoLive(ctx context.Context, studyID string) (*domain.RecruitmentState, error) {
	return e.openWindow(ctx, "go_live", studyID)
}

// OpenWindow opens the next recruitment window for a study in ready_to_open.
// GoLive and OpenWindow are the same transition under two names.
func (e *Engine) OpenWindow(ctx context.Context, studyID string) (*domain.RecruitmentState, error) {
	return e.openWindow(ctx, "open_window", studyID)
}

func (e *Engine) openWindow(ctx context.Context, command, studyID string) (*domain.RecruitmentState, error) {
	state, err := e.apply(ctx, command, studyID, func(state *domain.RecruitmentState, now time.Time) ([]domain.RecruitmentEvent, error) {
		if state.Status.IsTerminal() {
			return nil, domain.NewInvalidTransitionError(studyID, command, state.Status, "recruitment is complete")
		}
		if state.Status != domain.StatusWaitlistOnly && state.Status != domain.StatusReadyToOpen {
			return nil, domain.NewInvalidTransitionError(studyID, command, state.Status, "")
		}

		cohort := fulfillment.NewCohort(studyID, len(state.Cohorts)+1, now)
		state.Cohorts = append(state.Cohorts, cohort)
		cohortID := cohort.ID
		state.CurrentCohortID = &cohortID
		endsAt := now.Add(e.windowDuration)
		state.CurrentWindowEndsAt = &endsAt
		state.CurrentWindowEnrolled = 0
		state.Status = domain.StatusWindowOpen

		evt := domain.NewRecruitmentEvent(domain.EventTypeWindowOpened, studyID, map[string]interface{}{
			"cohort_id":      cohort.ID.String(),
			"cohort_number":  cohort.CohortNumber,
			"window_ends_at": endsAt,
		})
		return []domain.RecruitmentEvent{evt}, nil
	})
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordWindowOpened()
	}
	e.logger.Info().Str("study_id", studyID).Int("cohort_number", len(state.Cohorts)).Msg("recruitment window opened")
	return state, nil
}

// EnrollParticipants enrolls the given participants into the currently open
// window, clamped so enrollment never pushes past the study target.
// Participants already in the cohort are skipped, so at-least-once event
// delivery cannot double-enroll. Returns the number accepted; excess
// participants stay on the waitlist.
func (e *Engine) EnrollParticipants(ctx context.Context, studyID string, participants []enrollment.Participant) (int, error) {
	var accepted int
	_, err := e.apply(ctx, "enroll", studyID, func(state *domain.RecruitmentState, now time.Time) ([]domain.RecruitmentEvent, error) {
		n, err := enrollIntoWindow(state, participants, "enroll", now)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, errUnchanged
		}
		accepted = n
		return nil, nil
	})
	if err != nil {
		return 0, err
	}
	if accepted > 0 && e.metrics != nil {
		e.metrics.RecordEnrollments("signup", accepted)
	}
	return accepted, nil
}

// enrollIntoWindow adds participants to the recruiting cohort of an open
// window, skipping duplicates and clamping to the remaining study capacity.
func enrollIntoWindow(state *domain.RecruitmentState, participants []enrollment.Participant, command string, now time.Time) (int, error) {
	if state.Status != domain.StatusWindowOpen {
		return 0, domain.NewInvalidTransitionError(state.StudyID, command, state.Status, "no window is open")
	}
	cohort := state.CurrentCohort()
	if cohort == nil || cohort.Status != domain.CohortStatusRecruiting {
		return 0, domain.NewInvalidTransitionError(state.StudyID, command, state.Status, "no recruiting cohort")
	}

	capacity := state.TargetParticipants - state.TotalEnrolled - state.CurrentWindowEnrolled
	accepted := 0
	for _, p := range participants {
		if accepted >= capacity {
			break
		}
		if p.ID == "" || cohort.Participant(p.ID) != nil {
			continue
		}
		cohort.Participants = append(cohort.Participants, &domain.ParticipantShipping{
			ParticipantID: p.ID,
			CohortID:      cohort.ID,
			DisplayName:   p.DisplayName,
			Address:       p.Address,
		})
		accepted++
	}
	if accepted > 0 {
		state.CurrentWindowEnrolled += accepted
		cohort.UpdatedAt = now
	}
	return accepted, nil
}

// closeOutcome carries the details a successful close produces, for metrics
// recorded outside the store transaction.
type closeOutcome struct {
	cohortSize      int
	enrolled        int
	durationSeconds float64
	completed       bool
}

// CloseWindow finalizes the open window into a cohort. A window with zero
// enrollments cannot close.
func (e *Engine) CloseWindow(ctx context.Context, studyID string) (*domain.RecruitmentState, error) {
	var out closeOutcome
	state, err := e.apply(ctx, "close_window", studyID, e.closeMutation(studyID, &out))
	if err != nil {
		return nil, err
	}
	e.afterClose(studyID, "manual", &out)
	return state, nil
}

// CloseExpiredWindow closes the study's window if it is past its deadline and
// has at least one enrollment. Expired windows with zero enrollments are left
// open for the operator, matching the manual-close guard. Returns whether a
// window was closed.
func (e *Engine) CloseExpiredWindow(ctx context.Context, studyID string) (bool, error) {
	var out closeOutcome
	closed := false
	inner := e.closeMutation(studyID, &out)

	_, err := e.apply(ctx, "close_window_sweep", studyID, func(state *domain.RecruitmentState, now time.Time) ([]domain.RecruitmentEvent, error) {
		if !state.WindowExpired(now) {
			return nil, errUnchanged
		}
		if state.CurrentWindowEnrolled == 0 {
			e.logger.Info().Str("study_id", studyID).Msg("expired window has no enrollments, leaving open")
			return nil, errUnchanged
		}
		evts, err := inner(state, now)
		if err == nil {
			closed = true
		}
		return evts, err
	})
	if err != nil {
		return false, err
	}
	if closed {
		e.afterClose(studyID, "sweep", &out)
	}
	return closed, nil
}

func (e *Engine) closeMutation(studyID string, out *closeOutcome) mutation {
	return func(state *domain.RecruitmentState, now time.Time) ([]domain.RecruitmentEvent, error) {
		if state.Status != domain.StatusWindowOpen {
			return nil, domain.NewInvalidTransitionError(studyID, "close_window", state.Status, "no window is open")
		}
		if state.CurrentWindowEnrolled == 0 {
			return nil, domain.NewInvalidTransitionError(studyID, "close_window", state.Status, "a cohort needs at least one enrolled participant")
		}
		if !state.CheckCapacity() {
			return nil, domain.NewCapacityExceededError(studyID, state.TargetParticipants, state.TotalEnrolled+state.CurrentWindowEnrolled)
		}
		cohort := state.CurrentCohort()
		if cohort == nil {
			return nil, domain.NewInvalidTransitionError(studyID, "close_window", state.Status, "no current cohort")
		}

		if err := fulfillment.Form(cohort, cohort.Participants, now); err != nil {
			return nil, err
		}

		enrolled := state.CurrentWindowEnrolled
		if state.CurrentWindowEndsAt != nil {
			openedAt := state.CurrentWindowEndsAt.Add(-e.windowDuration)
			out.durationSeconds = now.Sub(openedAt).Seconds()
		}
		state.TotalEnrolled += enrolled
		state.CurrentWindowEnrolled = 0
		state.CurrentWindowEndsAt = nil

		evts := []domain.RecruitmentEvent{
			domain.NewRecruitmentEvent(domain.EventTypeCohortFormed, studyID, map[string]interface{}{
				"cohort_id":     cohort.ID.String(),
				"cohort_number": cohort.CohortNumber,
				"cohort_size":   cohort.Size(),
			}),
			domain.NewRecruitmentEvent(domain.EventTypeWindowClosed, studyID, domain.WindowClosedPayload(cohort, state.TotalEnrolled)),
		}

		if state.TotalEnrolled >= state.TargetParticipants {
			state.Status = domain.StatusComplete
			out.completed = true
			evts = append(evts, domain.NewRecruitmentEvent(domain.EventTypeStudyComplete, studyID, map[string]interface{}{
				"total_enrolled": state.TotalEnrolled,
				"cohort_count":   len(state.Cohorts),
			}))
		} else {
			state.Status = domain.StatusWindowClosed
		}

		out.cohortSize = cohort.Size()
		out.enrolled = enrolled
		return evts, nil
	}
}

func (e *Engine) afterClose(studyID, trigger string, out *closeOutcome) {
	if e.metrics != nil {
		e.metrics.RecordWindowClosed(trigger, out.durationSeconds, out.enrolled)
		e.metrics.RecordCohortFormed(out.cohortSize)
		if out.completed {
			e.metrics.RecordStudyCompleted()
		}
	}
	e.logger.Info().
		Str("study_id", studyID).
		Str("trigger", trigger).
		Int("cohort_size", out.cohortSize).
		Bool("study_complete", out.completed).
		Msg("recruitment window closed")
}

// EnterTrackingCode records a carrier tracking number for a participant of the
// current cohort. Re-entry overwrites without double-counting. When the last
// missing code arrives the cohort moves to shipping and the study to
// ready_to_open; a study that already hit its target stays complete, since the
// final cohort still has to ship.
func (e *Engine) EnterTrackingCode(ctx context.Context, studyID, participantID, trackingNumber string) (*domain.RecruitmentState, error) {
	var firstEntry bool
	state, err := e.apply(ctx, "enter_tracking_code", studyID, func(state *domain.RecruitmentState, now time.Time) ([]domain.RecruitmentEvent, error) {
		if state.Status != domain.StatusWindowClosed && state.Status != domain.StatusComplete {
			return nil, domain.NewInvalidTransitionError(studyID, "enter_tracking_code", state.Status, "no cohort is awaiting tracking codes")
		}
		cohort := state.CurrentCohort()
		if cohort == nil {
			return nil, domain.NewInvalidTransitionError(studyID, "enter_tracking_code", state.Status, "no current cohort")
		}

		first, err := fulfillment.RecordTracking(cohort, participantID, trackingNumber, now)
		if err != nil {
			return nil, err
		}
		firstEntry = first

		var evts []domain.RecruitmentEvent
		if first && cohort.AllTrackingEntered {
			evts = append(evts, domain.NewRecruitmentEvent(domain.EventTypeTrackingComplete, studyID, domain.TrackingCompletePayload(cohort)))
			if state.Status == domain.StatusWindowClosed {
				state.Status = domain.StatusReadyToOpen
			}
		}
		return evts, nil
	})
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordTrackingCodeEntered(firstEntry)
	}
	return state, nil
}

// UpdateAddress records a participant's shipping address on the given cohort.
func (e *Engine) UpdateAddress(ctx context.Context, studyID string, cohortID uuid.UUID, participantID string, address domain.Address) (*domain.RecruitmentState, error) {
	return e.apply(ctx, "update_address", studyID, func(state *domain.RecruitmentState, now time.Time) ([]domain.RecruitmentEvent, error) {
		cohort := findCohort(state, cohortID)
		if cohort == nil {
			return nil, fmt.Errorf("cohort %s: %w", cohortID, domain.ErrCohortNotFound)
		}
		if err := fulfillment.UpdateAddress(cohort, participantID, address, now); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// MarkDelivered records a delivery confirmation for a participant. When the
// last participant of a cohort is confirmed, the cohort completes and its
// average ship time is computed.
func (e *Engine) MarkDelivered(ctx context.Context, studyID string, cohortID uuid.UUID, participantID string) (*domain.RecruitmentState, error) {
	var allDelivered bool
	state, err := e.apply(ctx, "mark_delivered", studyID, func(state *domain.RecruitmentState, now time.Time) ([]domain.RecruitmentEvent, error) {
		cohort := findCohort(state, cohortID)
		if cohort == nil {
			return nil, fmt.Errorf("cohort %s: %w", cohortID, domain.ErrCohortNotFound)
		}

		done, err := fulfillment.MarkDelivered(cohort, participantID, now)
		if err != nil {
			return nil, err
		}
		allDelivered = done

		if done {
			evt := domain.NewRecruitmentEvent(domain.EventTypeCohortDelivered, studyID, map[string]interface{}{
				"cohort_id":          cohort.ID.String(),
				"cohort_number":      cohort.CohortNumber,
				"delivered_count":    cohort.DeliveredCount,
				"avg_ship_time_days": cohort.AvgShipTimeDays,
			})
			return []domain.RecruitmentEvent{evt}, nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	if allDelivered && e.metrics != nil {
		e.metrics.RecordCohortDelivered()
	}
	return state, nil
}

func findCohort(state *domain.RecruitmentState, cohortID uuid.UUID) *domain.Cohort {
	for _, c := range state.Cohorts {
		if c.ID == cohortID {
			return c
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrStudyNotFound)
}
