// Package repository provides data access interfaces and implementations
// for the Recruitment Service.
//
// # Overview
//
// This package defines the recruitment store interface and its PostgreSQL and
// in-memory implementations following the repository pattern to abstract data
// persistence from the recruitment engine.
//
// # Stores
//
// The package provides the following implementations:
//
//   - PgRecruitmentStore: PostgreSQL-backed persistence for recruitment state,
//     cohorts, and participant shipping records
//   - MemoryStore: in-memory store for demo deployments and tests
//
// # Thread Safety
//
// All store implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization; the
// MemoryStore guards its map with a mutex.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Wrap database errors with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrStudyNotFound: Study has no recruitment state
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass a transaction from database.DB.WithTransaction for atomic operations.
//
// # Usage Pattern
//
// Stores are typically created at application startup and passed to the engine:
//
//	db, _ := database.New(ctx, cfg, logger)
//	store := repository.NewPgRecruitmentStore(db)
package repository

import (
	"context"
	"time"

	"github.com/trialkit/recruitment-service/internal/database"
	"github.com/trialkit/recruitment-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows stores to work with both direct pool connections and transactions.
//
// # Constructor Pattern
//
// Store implementations follow a constructor pattern that accepts DBTX:
//
//	type PgRecruitmentStore struct {
//	    db DBTX
//	}
//
//	func NewPgRecruitmentStore(db DBTX) *PgRecruitmentStore {
//	    return &PgRecruitmentStore{db: db}
//	}
//
// This design enables:
//   - Direct usage with a connection pool for standard operations
//   - Transaction support by passing a transaction (pgx.Tx) instead
//   - Easy testing with mock implementations of DBTX
type DBTX = database.DBTX

// RecruitmentStore persists recruitment state, cohorts, and participant
// shipping records. Save writes the full state snapshot atomically so a
// rejected or failed command never leaves a partial write behind.
type RecruitmentStore interface {
	// Get loads the full recruitment state for a study, including all cohorts
	// and their participants. Returns domain.ErrStudyNotFound when the study
	// has no recruitment state.
	Get(ctx context.Context, studyID string) (*domain.RecruitmentState, error)

	// Save persists the full state snapshot, replacing any previous snapshot
	// for the study.
	Save(ctx context.Context, state *domain.RecruitmentState) error

	// List returns the recruitment state of every known study.
	List(ctx context.Context) ([]*domain.RecruitmentState, error)

	// ListExpiredWindows returns the study IDs of open windows whose deadline
	// is at or before now.
	ListExpiredWindows(ctx context.Context, now time.Time) ([]string, error)

	// Delete removes the recruitment state for a study.
	Delete(ctx context.Context, studyID string) error

	// Reset removes all recruitment state. Used by the simulation surface.
	Reset(ctx context.Context) error
}
