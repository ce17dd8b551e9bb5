package waitlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trialkit/recruitment-service/internal/domain"
)

func TestExpectedEnrollments(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name       string
		waitlist   int
		conversion float64
		target     int
		enrolled   int
		expected   int
	}{
		{
			name:       "rounds projection to nearest integer",
			waitlist:   30,
			conversion: 0.35,
			target:     100,
			expected:   11, // 30 * 0.35 = 10.5 rounds to 11
		},
		{
			name:       "rounds down below half",
			waitlist:   29,
			conversion: 0.35,
			target:     100,
			expected:   10, // 29 * 0.35 = 10.15
		},
		{
			name:       "projection may exceed remaining capacity",
			waitlist:   100,
			conversion: 0.35,
			target:     20,
			expected:   35, // advisory figure is not clamped to the 20 open slots
		},
		{
			name:       "large waitlist on a nearly full study",
			waitlist:   1000,
			conversion: 0.35,
			target:     100,
			enrolled:   80,
			expected:   350,
		},
		{
			name:       "zero waitlist projects zero",
			waitlist:   0,
			conversion: 0.35,
			target:     100,
			expected:   0,
		},
		{
			name:       "full study still projects from the waitlist",
			waitlist:   50,
			conversion: 0.35,
			target:     100,
			enrolled:   100,
			expected:   18, // round(50 * 0.35)
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := domain.NewRecruitmentState("study-1", tt.target, tt.waitlist, tt.enrolled, now)
			state.ConversionRate = tt.conversion
			assert.Equal(t, tt.expected, ExpectedEnrollments(state))
		})
	}
}

func TestDerive(t *testing.T) {
	now := time.Now().UTC()

	t.Run("splits new and returning users by weekly window", func(t *testing.T) {
		state := domain.NewRecruitmentState("study-1", 100, 40, 0, now)
		state.WaitlistGrowth = []domain.WaitlistGrowthEntry{
			{Count: 5, RecordedAt: now.Add(-2 * 24 * time.Hour)},
			{Count: 3, RecordedAt: now.Add(-6 * 24 * time.Hour)},
			{Count: 10, RecordedAt: now.Add(-10 * 24 * time.Hour)}, // outside window
		}

		stats := Derive(state, now)

		assert.Equal(t, 40, stats.Count)
		assert.Equal(t, 8, stats.WeeklyChange)
		assert.Equal(t, 8, stats.NewUsers)
		assert.Equal(t, 32, stats.ReturningUsers)
		assert.Equal(t, 14, stats.ProjectedEnrollments) // round(40 * 0.35)
		assert.InDelta(t, domain.DefaultConversionRate, stats.ConversionRate, 1e-9)
		assert.True(t, stats.ReadyToRecruit)
	})

	t.Run("new users never exceed waitlist count", func(t *testing.T) {
		state := domain.NewRecruitmentState("study-1", 100, 5, 0, now)
		state.WaitlistGrowth = []domain.WaitlistGrowthEntry{
			{Count: 12, RecordedAt: now.Add(-24 * time.Hour)},
		}

		stats := Derive(state, now)

		assert.Equal(t, 12, stats.WeeklyChange)
		assert.Equal(t, 5, stats.NewUsers)
		assert.Equal(t, 0, stats.ReturningUsers)
	})

	t.Run("no growth entries means no weekly change", func(t *testing.T) {
		state := domain.NewRecruitmentState("study-1", 100, 20, 0, now)

		stats := Derive(state, now)

		assert.Equal(t, 0, stats.WeeklyChange)
		assert.Equal(t, 0, stats.NewUsers)
		assert.Equal(t, 20, stats.ReturningUsers)
	})

	t.Run("small waitlist is not ready to recruit", func(t *testing.T) {
		state := domain.NewRecruitmentState("study-1", 100, MinWaitlistToRecruit-1, 0, now)

		stats := Derive(state, now)

		assert.False(t, stats.ReadyToRecruit)
	})
}
