package enrollment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratedSource_Participants(t *testing.T) {
	ctx := context.Background()
	source := NewGeneratedSource()

	t.Run("generates requested count with unique IDs", func(t *testing.T) {
		participants, err := source.Participants(ctx, "study-1", 25)
		require.NoError(t, err)
		require.Len(t, participants, 25)

		seen := make(map[string]bool)
		for _, p := range participants {
			assert.NotEmpty(t, p.ID)
			assert.NotEmpty(t, p.DisplayName)
			assert.True(t, p.Address.Empty())
			assert.False(t, seen[p.ID], "duplicate participant ID %s", p.ID)
			seen[p.ID] = true
		}
	})

	t.Run("zero count returns empty slice", func(t *testing.T) {
		participants, err := source.Participants(ctx, "study-1", 0)
		require.NoError(t, err)
		assert.Empty(t, participants)
	})

	t.Run("negative count is rejected", func(t *testing.T) {
		_, err := source.Participants(ctx, "study-1", -1)
		assert.Error(t, err)
	})
}
