package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialkit/recruitment-service/internal/catalogue"
	"github.com/trialkit/recruitment-service/internal/domain"
	"github.com/trialkit/recruitment-service/internal/enrollment"
	"github.com/trialkit/recruitment-service/internal/repository"
)

type fakeCatalogue struct {
	study *catalogue.Study
	err   error
}

func (f *fakeCatalogue) Study(ctx context.Context, studyID string) (*catalogue.Study, error) {
	return f.study, f.err
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T, opts Options) (*Engine, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts.Store = repository.NewMemoryStore()
	opts.Logger = zerolog.Nop()
	opts.Clock = clock.Now
	return New(opts), clock
}

func enterAllTracking(t *testing.T, e *Engine, studyID string, cohort *domain.Cohort) *domain.RecruitmentState {
	t.Helper()
	var state *domain.RecruitmentState
	var err error
	for i, p := range cohort.Participants {
		state, err = e.EnterTrackingCode(context.Background(), studyID, p.ParticipantID, fmt.Sprintf("TRK-%03d", i))
		require.NoError(t, err)
	}
	return state
}

func TestInitializeStudy(t *testing.T) {
	ctx := context.Background()

	t.Run("creates waitlist_only state", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		state, err := e.InitializeStudy(ctx, "s1", 20, 15, 0)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusWaitlistOnly, state.Status)
		assert.Equal(t, 20, state.TargetParticipants)
		assert.Equal(t, 15, state.WaitlistCount)
		assert.Equal(t, 0, state.TotalEnrolled)
		assert.Nil(t, state.CurrentCohortID)
	})

	t.Run("idempotent", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 20, 15, 3)
		require.NoError(t, err)

		state, err := e.InitializeStudy(ctx, "s1", 99, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 20, state.TargetParticipants)
		assert.Equal(t, 15, state.WaitlistCount)
		assert.Equal(t, 3, state.TotalEnrolled)
	})

	t.Run("resolves target from catalogue", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{
			Catalogue: &fakeCatalogue{study: &catalogue.Study{
				ID: "s1", Status: domain.StudyStatusActive, TargetParticipants: 40,
			}},
		})
		state, err := e.InitializeStudy(ctx, "s1", 0, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 40, state.TargetParticipants)
	})

	t.Run("rejects draft study", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{
			Catalogue: &fakeCatalogue{study: &catalogue.Study{
				ID: "s1", Status: domain.StudyStatusDraft, TargetParticipants: 40,
			}},
		})
		_, err := e.InitializeStudy(ctx, "s1", 0, 0, 0)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("rejects non-positive target without catalogue", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 0, 0, 0)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("rejects enrolled seed past target", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 10, 0, 11)
		assert.True(t, errors.Is(err, domain.ErrCapacityExceeded))
	})
}

func TestScenarioA_InitializeGrowGoLive(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, Options{})

	state, err := e.InitializeStudy(ctx, "s1", 20, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitlistOnly, state.Status)

	state, err = e.SimulateWaitlistGrowth(ctx, "s1", 15)
	require.NoError(t, err)
	assert.Equal(t, 15, state.WaitlistCount)

	state, err = e.GoLive(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWindowOpen, state.Status)
	require.Len(t, state.Cohorts, 1)
	assert.Equal(t, 1, state.Cohorts[0].CohortNumber)
	assert.Equal(t, domain.CohortStatusRecruiting, state.Cohorts[0].Status)
	require.NotNil(t, state.CurrentWindowEndsAt)
	assert.NotNil(t, state.CurrentCohortID)
}

func TestScenarioB_ClampAndCompleteInOneCohort(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, Options{})

	_, err := e.InitializeStudy(ctx, "s1", 20, 0, 0)
	require.NoError(t, err)
	_, err = e.GoLive(ctx, "s1")
	require.NoError(t, err)

	state, err := e.SimulateEnrollment(ctx, "s1", 25)
	require.NoError(t, err)
	assert.Equal(t, 20, state.CurrentWindowEnrolled, "enrollment clamps to target")

	state, err = e.CloseWindow(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 20, state.TotalEnrolled)
	assert.Equal(t, domain.StatusComplete, state.Status)
	assert.Equal(t, 20, state.Cohorts[0].Size())
	assert.Equal(t, 0, state.CurrentWindowEnrolled)
	assert.Nil(t, state.CurrentWindowEndsAt)
}

func TestScenarioC_TrackingEntryCompletion(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, Options{})

	_, err := e.InitializeStudy(ctx, "s2", 50, 0, 0)
	require.NoError(t, err)
	_, err = e.GoLive(ctx, "s2")
	require.NoError(t, err)
	_, err = e.SimulateEnrollment(ctx, "s2", 8)
	require.NoError(t, err)

	state, err := e.CloseWindow(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWindowClosed, state.Status)
	cohort := state.Cohorts[0]
	assert.Equal(t, 8, cohort.Size())
	assert.Equal(t, 0, cohort.TrackingCodesEntered)

	for i := 0; i < 7; i++ {
		state, err = e.EnterTrackingCode(ctx, "s2", cohort.Participants[i].ParticipantID, fmt.Sprintf("TRK-%d", i))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusWindowClosed, state.Status)
		assert.False(t, state.Cohorts[0].AllTrackingEntered)
	}

	state, err = e.EnterTrackingCode(ctx, "s2", cohort.Participants[7].ParticipantID, "TRK-7")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReadyToOpen, state.Status)
	assert.True(t, state.Cohorts[0].AllTrackingEntered)
	assert.Equal(t, domain.CohortStatusShipping, state.Cohorts[0].Status)
}

func TestScenarioD_SecondWindowLeavesHistoryUntouched(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, Options{})

	_, err := e.InitializeStudy(ctx, "s2", 50, 0, 0)
	require.NoError(t, err)
	_, err = e.GoLive(ctx, "s2")
	require.NoError(t, err)
	_, err = e.SimulateEnrollment(ctx, "s2", 8)
	require.NoError(t, err)
	state, err := e.CloseWindow(ctx, "s2")
	require.NoError(t, err)

	state = enterAllTracking(t, e, "s2", state.Cohorts[0])
	require.Equal(t, domain.StatusReadyToOpen, state.Status)

	state, err = e.OpenWindow(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWindowOpen, state.Status)
	require.Len(t, state.Cohorts, 2)
	assert.Equal(t, 2, state.Cohorts[1].CohortNumber)
	assert.Equal(t, *state.CurrentCohortID, state.Cohorts[1].ID)

	first := state.Cohorts[0]
	assert.Equal(t, 8, first.Size())
	assert.Equal(t, domain.CohortStatusShipping, first.Status)
	assert.True(t, first.AllTrackingEntered)
}

func TestCloseWindow_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected in waitlist_only without mutation", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 20, 5, 0)
		require.NoError(t, err)

		_, err = e.CloseWindow(ctx, "s1")
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

		state, err := e.GetState(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusWaitlistOnly, state.Status)
		assert.Equal(t, 5, state.WaitlistCount)
	})

	t.Run("rejected with zero enrollments", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 20, 0, 0)
		require.NoError(t, err)
		_, err = e.GoLive(ctx, "s1")
		require.NoError(t, err)

		_, err = e.CloseWindow(ctx, "s1")
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

		state, err := e.GetState(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusWindowOpen, state.Status)
	})
}

func TestOpenWindow_Guards(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, Options{})

	_, err := e.GoLive(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrStudyNotFound))

	_, err = e.InitializeStudy(ctx, "s1", 20, 0, 0)
	require.NoError(t, err)
	_, err = e.GoLive(ctx, "s1")
	require.NoError(t, err)

	_, err = e.GoLive(ctx, "s1")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "cannot open a window twice")

	// Complete the study, then verify the terminal state accepts nothing.
	_, err = e.SimulateEnrollment(ctx, "s1", 20)
	require.NoError(t, err)
	_, err = e.CloseWindow(ctx, "s1")
	require.NoError(t, err)

	_, err = e.OpenWindow(ctx, "s1")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	_, err = e.SimulateWaitlistGrowth(ctx, "s1", 5)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestSimulateEnrollment(t *testing.T) {
	ctx := context.Background()

	t.Run("clamp to zero is a no-op", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 10, 0, 0)
		require.NoError(t, err)
		_, err = e.GoLive(ctx, "s1")
		require.NoError(t, err)
		_, err = e.SimulateEnrollment(ctx, "s1", 10)
		require.NoError(t, err)

		state, err := e.SimulateEnrollment(ctx, "s1", 5)
		require.NoError(t, err)
		assert.Equal(t, 10, state.CurrentWindowEnrolled)
	})

	t.Run("requires open window", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 10, 0, 0)
		require.NoError(t, err)
		_, err = e.SimulateEnrollment(ctx, "s1", 5)
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	})

	t.Run("rejects negative", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.SimulateEnrollment(ctx, "s1", -1)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("capacity invariant holds across windows", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 30, 0, 0)
		require.NoError(t, err)

		for {
			state, err := e.GetState(ctx, "s1")
			require.NoError(t, err)
			if state.Status == domain.StatusComplete {
				break
			}
			state, err = e.GoLive(ctx, "s1")
			require.NoError(t, err)
			state, err = e.SimulateEnrollment(ctx, "s1", 12)
			require.NoError(t, err)
			assert.True(t, state.CheckCapacity())
			state, err = e.CloseWindow(ctx, "s1")
			require.NoError(t, err)
			assert.True(t, state.CheckCapacity())
			if state.Status == domain.StatusComplete {
				break
			}
			enterAllTracking(t, e, "s1", state.Cohorts[len(state.Cohorts)-1])
		}

		state, err := e.GetState(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 30, state.TotalEnrolled)
		assert.Len(t, state.Cohorts, 3)
	})
}

func TestEnrollParticipants(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, Options{})

	_, err := e.InitializeStudy(ctx, "s1", 3, 0, 0)
	require.NoError(t, err)
	_, err = e.GoLive(ctx, "s1")
	require.NoError(t, err)

	accepted, err := e.EnrollParticipants(ctx, "s1", []enrollment.Participant{
		{ID: "p1", DisplayName: "Alice B."},
		{ID: "p2", DisplayName: "Bob C."},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)

	// Redelivery of the same signup does not double-enroll.
	accepted, err = e.EnrollParticipants(ctx, "s1", []enrollment.Participant{
		{ID: "p2", DisplayName: "Bob C."},
		{ID: "p3", DisplayName: "Cara D."},
		{ID: "p4", DisplayName: "Dan E."},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted, "duplicate skipped, overflow clamped")

	state, err := e.GetState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, state.CurrentWindowEnrolled)
	assert.Equal(t, 3, state.Cohorts[0].Size())
}

func TestEnterTrackingCode(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Engine, *domain.Cohort) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 50, 0, 0)
		require.NoError(t, err)
		_, err = e.GoLive(ctx, "s1")
		require.NoError(t, err)
		_, err = e.SimulateEnrollment(ctx, "s1", 3)
		require.NoError(t, err)
		state, err := e.CloseWindow(ctx, "s1")
		require.NoError(t, err)
		return e, state.Cohorts[0]
	}

	t.Run("re-entry overwrites without double count", func(t *testing.T) {
		e, cohort := setup(t)
		pid := cohort.Participants[0].ParticipantID

		state, err := e.EnterTrackingCode(ctx, "s1", pid, "TRK-A")
		require.NoError(t, err)
		assert.Equal(t, 1, state.Cohorts[0].TrackingCodesEntered)

		state, err = e.EnterTrackingCode(ctx, "s1", pid, "TRK-B")
		require.NoError(t, err)
		assert.Equal(t, 1, state.Cohorts[0].TrackingCodesEntered)
		assert.Equal(t, "TRK-B", state.Cohorts[0].Participants[0].TrackingNumber)
	})

	t.Run("unknown participant", func(t *testing.T) {
		e, _ := setup(t)
		_, err := e.EnterTrackingCode(ctx, "s1", "nobody", "TRK-A")
		assert.True(t, errors.Is(err, domain.ErrUnknownParticipant))
	})

	t.Run("rejected while window open", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 50, 0, 0)
		require.NoError(t, err)
		_, err = e.GoLive(ctx, "s1")
		require.NoError(t, err)
		_, err = e.EnterTrackingCode(ctx, "s1", "p", "TRK-A")
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	})

	t.Run("final cohort of a complete study still ships", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 2, 0, 0)
		require.NoError(t, err)
		_, err = e.GoLive(ctx, "s1")
		require.NoError(t, err)
		_, err = e.SimulateEnrollment(ctx, "s1", 2)
		require.NoError(t, err)
		state, err := e.CloseWindow(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, domain.StatusComplete, state.Status)

		state = enterAllTracking(t, e, "s1", state.Cohorts[0])
		assert.Equal(t, domain.StatusComplete, state.Status)
		assert.Equal(t, domain.CohortStatusShipping, state.Cohorts[0].Status)
	})
}

func TestUpdateAddress(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, Options{})

	_, err := e.InitializeStudy(ctx, "s1", 50, 0, 0)
	require.NoError(t, err)
	_, err = e.GoLive(ctx, "s1")
	require.NoError(t, err)
	_, err = e.SimulateEnrollment(ctx, "s1", 2)
	require.NoError(t, err)
	state, err := e.CloseWindow(ctx, "s1")
	require.NoError(t, err)
	cohort := state.Cohorts[0]
	require.Equal(t, domain.CohortStatusCollectingAddresses, cohort.Status)

	addr := domain.Address{Street1: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701"}

	state, err = e.UpdateAddress(ctx, "s1", cohort.ID, cohort.Participants[0].ParticipantID, addr)
	require.NoError(t, err)
	assert.Equal(t, domain.CohortStatusCollectingAddresses, state.Cohorts[0].Status)

	state, err = e.UpdateAddress(ctx, "s1", cohort.ID, cohort.Participants[1].ParticipantID, addr)
	require.NoError(t, err)
	assert.Equal(t, domain.CohortStatusPendingShipment, state.Cohorts[0].Status, "all addresses on file")

	_, err = e.UpdateAddress(ctx, "s1", cohort.ID, "nobody", addr)
	assert.True(t, errors.Is(err, domain.ErrUnknownParticipant))
}

func TestMarkDelivered(t *testing.T) {
	ctx := context.Background()
	e, clock := newTestEngine(t, Options{})

	_, err := e.InitializeStudy(ctx, "s1", 50, 0, 0)
	require.NoError(t, err)
	_, err = e.GoLive(ctx, "s1")
	require.NoError(t, err)
	_, err = e.SimulateEnrollment(ctx, "s1", 2)
	require.NoError(t, err)
	state, err := e.CloseWindow(ctx, "s1")
	require.NoError(t, err)
	cohort := state.Cohorts[0]

	_, err = e.MarkDelivered(ctx, "s1", cohort.ID, cohort.Participants[0].ParticipantID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "delivery needs a tracking number")

	state = enterAllTracking(t, e, "s1", cohort)
	require.Equal(t, domain.CohortStatusShipping, state.Cohorts[0].Status)

	clock.Advance(3 * 24 * time.Hour)
	state, err = e.MarkDelivered(ctx, "s1", cohort.ID, cohort.Participants[0].ParticipantID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Cohorts[0].DeliveredCount)
	assert.Equal(t, domain.CohortStatusShipping, state.Cohorts[0].Status)

	state, err = e.MarkDelivered(ctx, "s1", cohort.ID, cohort.Participants[1].ParticipantID)
	require.NoError(t, err)
	assert.Equal(t, domain.CohortStatusComplete, state.Cohorts[0].Status)
	assert.Equal(t, 3.0, state.Cohorts[0].AvgShipTimeDays)
}

func TestCloseExpiredWindow(t *testing.T) {
	ctx := context.Background()

	t.Run("closes expired window with enrollments", func(t *testing.T) {
		e, clock := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 50, 0, 0)
		require.NoError(t, err)
		_, err = e.GoLive(ctx, "s1")
		require.NoError(t, err)
		_, err = e.SimulateEnrollment(ctx, "s1", 4)
		require.NoError(t, err)

		clock.Advance(25 * time.Hour)
		closed, err := e.CloseExpiredWindow(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, closed)

		state, err := e.GetState(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusWindowClosed, state.Status)
	})

	t.Run("skips expired window with zero enrollments", func(t *testing.T) {
		e, clock := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 50, 0, 0)
		require.NoError(t, err)
		_, err = e.GoLive(ctx, "s1")
		require.NoError(t, err)

		clock.Advance(25 * time.Hour)
		closed, err := e.CloseExpiredWindow(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, closed)

		state, err := e.GetState(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusWindowOpen, state.Status, "zero-enrollment window stays open for the operator")
	})

	t.Run("skips window before deadline", func(t *testing.T) {
		e, _ := newTestEngine(t, Options{})
		_, err := e.InitializeStudy(ctx, "s1", 50, 0, 0)
		require.NoError(t, err)
		_, err = e.GoLive(ctx, "s1")
		require.NoError(t, err)
		_, err = e.SimulateEnrollment(ctx, "s1", 4)
		require.NoError(t, err)

		closed, err := e.CloseExpiredWindow(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, closed)
	})
}

func TestSimulateWaitlistGrowth(t *testing.T) {
	ctx := context.Background()
	e, clock := newTestEngine(t, Options{})

	_, err := e.InitializeStudy(ctx, "s1", 50, 10, 0)
	require.NoError(t, err)

	state, err := e.SimulateWaitlistGrowth(ctx, "s1", 7)
	require.NoError(t, err)
	assert.Equal(t, 17, state.WaitlistCount)
	require.Len(t, state.WaitlistGrowth, 1)
	assert.Equal(t, 7, state.WaitlistGrowth[0].Count)
	assert.Equal(t, clock.Now(), state.WaitlistGrowth[0].RecordedAt)

	_, err = e.SimulateWaitlistGrowth(ctx, "s1", -1)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	// Enrollment never consumes the waitlist.
	_, err = e.GoLive(ctx, "s1")
	require.NoError(t, err)
	_, err = e.SimulateEnrollment(ctx, "s1", 5)
	require.NoError(t, err)
	state, err = e.GetState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 17, state.WaitlistCount)
}

func TestResetStore(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, Options{})

	_, err := e.InitializeStudy(ctx, "s1", 20, 0, 0)
	require.NoError(t, err)

	require.NoError(t, e.ResetStore(ctx))

	_, err = e.GetState(ctx, "s1")
	assert.True(t, errors.Is(err, domain.ErrStudyNotFound))
}

func TestWaitlistStats(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, Options{})

	_, err := e.InitializeStudy(ctx, "s1", 100, 20, 0)
	require.NoError(t, err)
	_, err = e.SimulateWaitlistGrowth(ctx, "s1", 10)
	require.NoError(t, err)

	stats, err := e.WaitlistStats(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 30, stats.Count)
	assert.Equal(t, 10, stats.WeeklyChange)
	assert.Equal(t, 11, stats.ProjectedEnrollments) // round(30*0.35)
	assert.True(t, stats.ReadyToRecruit)
}

func TestExportManifest(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, Options{})

	_, err := e.InitializeStudy(ctx, "s1", 50, 0, 0)
	require.NoError(t, err)
	_, err = e.GoLive(ctx, "s1")
	require.NoError(t, err)
	_, err = e.SimulateEnrollment(ctx, "s1", 2)
	require.NoError(t, err)
	state, err := e.CloseWindow(ctx, "s1")
	require.NoError(t, err)
	cohort := state.Cohorts[0]

	_, err = e.UpdateAddress(ctx, "s1", cohort.ID, cohort.Participants[0].ParticipantID,
		domain.Address{Street1: "1 Main St", City: "Springfield", ZipCode: "62701"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, e.ExportManifest(ctx, "s1", cohort.ID, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "header plus the one addressed participant")
	assert.Equal(t, "Participant ID,Name,Street 1,Street 2,City,State,Zip Code,Phone", lines[0])
	assert.Contains(t, lines[1], "1 Main St")
}

func TestCrossStudyIsolation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, Options{})

	_, err := e.InitializeStudy(ctx, "s1", 20, 0, 0)
	require.NoError(t, err)
	_, err = e.InitializeStudy(ctx, "s2", 30, 0, 0)
	require.NoError(t, err)
	_, err = e.GoLive(ctx, "s1")
	require.NoError(t, err)

	state, err := e.GetState(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitlistOnly, state.Status)

	states, err := e.ListStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "s1", states[0].StudyID)
}
