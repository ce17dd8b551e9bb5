package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trialkit/recruitment-service/internal/domain"
)

// Compile-time interface verification.
var _ RecruitmentStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory RecruitmentStore. State does not survive a
// restart; it exists for demo deployments and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*domain.RecruitmentState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*domain.RecruitmentState),
	}
}

// Get loads the recruitment state for a study.
func (s *MemoryStore) Get(ctx context.Context, studyID string) (*domain.RecruitmentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[studyID]
	if !ok {
		return nil, domain.NewStudyNotFoundError(studyID)
	}
	return state.Clone(), nil
}

// Save persists the full state snapshot for a study.
func (s *MemoryStore) Save(ctx context.Context, state *domain.RecruitmentState) error {
	if state == nil || state.StudyID == "" {
		return domain.NewValidationError("state", "state with a study ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.StudyID] = state.Clone()
	return nil
}

// List returns the recruitment state of every known study, ordered by study ID
// for deterministic output.
func (s *MemoryStore) List(ctx context.Context) ([]*domain.RecruitmentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]*domain.RecruitmentState, 0, len(s.states))
	for _, state := range s.states {
		states = append(states, state.Clone())
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].StudyID < states[j].StudyID
	})
	return states, nil
}

// ListExpiredWindows returns study IDs of open windows whose deadline passed.
func (s *MemoryStore) ListExpiredWindows(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, state := range s.states {
		if state.Status == domain.StatusWindowOpen && state.WindowExpired(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the recruitment state for a study.
func (s *MemoryStore) Delete(ctx context.Context, studyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[studyID]; !ok {
		return domain.NewStudyNotFoundError(studyID)
	}
	delete(s.states, studyID)
	return nil
}

// Reset removes all recruitment state.
func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states = make(map[string]*domain.RecruitmentState)
	return nil
}
