// Package sweeper auto-closes recruitment windows past their deadline.
//
// Manual closing remains the primary path; the sweep is an optional safety
// net, disabled by default. It mirrors the manual guard: a window with zero
// enrollments is never closed automatically, only logged.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/trialkit/recruitment-service/internal/repository"
)

// WindowCloser is the slice of the engine the sweeper drives.
type WindowCloser interface {
	CloseExpiredWindow(ctx context.Context, studyID string) (bool, error)
}

// Sweeper periodically lists open windows past their deadline and closes the
// ones that can close.
type Sweeper struct {
	store    repository.RecruitmentStore
	closer   WindowCloser
	interval time.Duration
	logger   zerolog.Logger
}

// New creates a Sweeper ticking at the given interval.
func New(store repository.RecruitmentStore, closer WindowCloser, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		closer:   closer,
		interval: interval,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run ticks until the context is canceled. Returns the context error on exit.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("starting window expiry sweep")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("stopping window expiry sweep")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass. Failures on one study do not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	studyIDs, err := s.store.ListExpiredWindows(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list expired windows")
		return
	}

	for _, studyID := range studyIDs {
		closed, err := s.closer.CloseExpiredWindow(ctx, studyID)
		switch {
		case err != nil:
			s.logger.Error().Err(err).Str("study_id", studyID).Msg("failed to close expired window")
		case closed:
			s.logger.Info().Str("study_id", studyID).Msg("closed expired window")
		}
	}
}
