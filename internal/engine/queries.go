package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/trialkit/recruitment-service/internal/domain"
	"github.com/trialkit/recruitment-service/internal/fulfillment"
	"github.com/trialkit/recruitment-service/internal/waitlist"
)

// GetState returns an independent snapshot of a study's recruitment state.
func (e *Engine) GetState(ctx context.Context, studyID string) (*domain.RecruitmentState, error) {
	return e.store.Get(ctx, studyID)
}

// ListStates returns snapshots of all recruitment states, ordered by study ID.
func (e *Engine) ListStates(ctx context.Context) ([]*domain.RecruitmentState, error) {
	return e.store.List(ctx)
}

// WaitlistStats derives the waitlist projection for a study: pool size,
// weekly change, new-vs-returning split and projected enrollments.
func (e *Engine) WaitlistStats(ctx context.Context, studyID string) (waitlist.Stats, error) {
	state, err := e.store.Get(ctx, studyID)
	if err != nil {
		return waitlist.Stats{}, err
	}
	return waitlist.Derive(state, e.clock()), nil
}

// CohortParticipants returns the shipping records of the given cohort.
func (e *Engine) CohortParticipants(ctx context.Context, studyID string, cohortID uuid.UUID) ([]*domain.ParticipantShipping, error) {
	state, err := e.store.Get(ctx, studyID)
	if err != nil {
		return nil, err
	}
	cohort := findCohort(state, cohortID)
	if cohort == nil {
		return nil, fmt.Errorf("cohort %s: %w", cohortID, domain.ErrCohortNotFound)
	}
	return cohort.Participants, nil
}

// ExportManifest writes the cohort's shipping manifest as CSV. Participants
// with no address on file are skipped.
func (e *Engine) ExportManifest(ctx context.Context, studyID string, cohortID uuid.UUID, w io.Writer) error {
	state, err := e.store.Get(ctx, studyID)
	if err != nil {
		return err
	}
	cohort := findCohort(state, cohortID)
	if cohort == nil {
		return fmt.Errorf("cohort %s: %w", cohortID, domain.ErrCohortNotFound)
	}
	if err := fulfillment.WriteManifest(w, cohort); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.RecordManifestExported()
	}
	return nil
}
