package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialkit/recruitment-service/internal/domain"
	"github.com/trialkit/recruitment-service/internal/repository"
)

type fakeCloser struct {
	closed []string
	errs   map[string]error
}

func (f *fakeCloser) CloseExpiredWindow(ctx context.Context, studyID string) (bool, error) {
	if err := f.errs[studyID]; err != nil {
		return false, err
	}
	f.closed = append(f.closed, studyID)
	return true, nil
}

func openWindowState(studyID string, endsAt time.Time) *domain.RecruitmentState {
	state := domain.NewRecruitmentState(studyID, 50, 0, 0, endsAt.Add(-24*time.Hour))
	state.Status = domain.StatusWindowOpen
	state.CurrentWindowEnrolled = 4
	state.CurrentWindowEndsAt = &endsAt
	return state
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	require.NoError(t, store.Save(ctx, openWindowState("expired-1", past)))
	require.NoError(t, store.Save(ctx, openWindowState("expired-2", past)))
	require.NoError(t, store.Save(ctx, openWindowState("still-open", future)))

	closer := &fakeCloser{}
	s := New(store, closer, time.Minute, zerolog.Nop())
	s.Sweep(ctx)

	assert.ElementsMatch(t, []string{"expired-1", "expired-2"}, closer.closed)
}

func TestSweep_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	past := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, store.Save(ctx, openWindowState("bad", past)))
	require.NoError(t, store.Save(ctx, openWindowState("good", past)))

	closer := &fakeCloser{errs: map[string]error{"bad": errors.New("boom")}}
	s := New(store, closer, time.Minute, zerolog.Nop())
	s.Sweep(ctx)

	assert.Equal(t, []string{"good"}, closer.closed)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := repository.NewMemoryStore()
	s := New(store, &fakeCloser{}, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
