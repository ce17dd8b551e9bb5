// Package enrollment supplies participants to the recruitment engine.
//
// Participants arrive from two directions: a Source produces batches on
// demand (the generated source backs the simulation surface), and the Kafka
// Listener pushes individual signups from the participant-facing apps.
package enrollment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/trialkit/recruitment-service/internal/domain"
)

// Participant is a prospective enrollee as supplied by an intake channel.
// The address is usually empty at enrollment time; participants provide it
// during the collecting_addresses phase.
type Participant struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name,omitempty"`
	Address     domain.Address `json:"address"`
}

// Source produces up to n participants for a study. Implementations may
// return fewer than requested; returning an empty slice is not an error.
type Source interface {
	Participants(ctx context.Context, studyID string, n int) ([]Participant, error)
}

// firstNames and lastInitials seed generated display names. Real participant
// names never pass through this service; the UI shows first name and last
// initial only.
var firstNames = []string{
	"Alex", "Sam", "Jordan", "Taylor", "Morgan", "Casey",
	"Riley", "Jamie", "Avery", "Quinn", "Rowan", "Skyler",
}

var lastInitials = "BCDFGHKLMNPRSTVW"

// GeneratedSource produces synthetic participants. It backs the simulation
// surface and demo deployments; production traffic comes through the Kafka
// listener instead.
type GeneratedSource struct{}

// NewGeneratedSource creates a synthetic participant source.
func NewGeneratedSource() *GeneratedSource {
	return &GeneratedSource{}
}

// Participants generates n synthetic participants with unique IDs.
func (s *GeneratedSource) Participants(ctx context.Context, studyID string, n int) ([]Participant, error) {
	if n < 0 {
		return nil, domain.NewValidationError("count", "participant count cannot be negative")
	}

	participants := make([]Participant, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.New()
		name := fmt.Sprintf("%s %c.",
			firstNames[int(id[0])%len(firstNames)],
			lastInitials[int(id[1])%len(lastInitials)],
		)
		participants = append(participants, Participant{
			ID:          id.String(),
			DisplayName: name,
		})
	}
	return participants, nil
}

// Compile-time interface verification.
var _ Source = (*GeneratedSource)(nil)
