package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trialkit/recruitment-service/internal/domain"
)

// txRunner is satisfied by *database.DB. Save prefers it so snapshot writes
// share the pool wrapper's rollback and panic handling.
type txRunner interface {
	WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// txBeginner is an interface for types that can begin a transaction (e.g., *pgxpool.Pool).
// Used by Save to wrap the multi-table snapshot write in a transaction when the
// underlying DBTX is a bare pool rather than an existing transaction.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// Compile-time interface verification.
var _ RecruitmentStore = (*PgRecruitmentStore)(nil)

// PgRecruitmentStore is a PostgreSQL implementation of RecruitmentStore.
//
// A study's state is spread over three tables: recruitment_states (the
// aggregate row, with waitlist growth as JSONB), cohorts, and
// participant_shipping. Save replaces the study's rows in all three inside a
// single transaction.
type PgRecruitmentStore struct {
	db DBTX
}

// NewPgRecruitmentStore creates a new PostgreSQL recruitment store.
func NewPgRecruitmentStore(db DBTX) *PgRecruitmentStore {
	return &PgRecruitmentStore{db: db}
}

const stateColumns = `study_id, status, target_participants, total_enrolled, waitlist_count,
		conversion_rate, current_window_enrolled, current_window_ends_at, current_cohort_id,
		waitlist_growth, created_at, updated_at`

const cohortColumns = `id, study_id, cohort_number, status, tracking_codes_entered,
		all_tracking_entered, delivered_count, avg_ship_time_days, created_at, updated_at`

const participantColumns = `participant_id, cohort_id, display_name,
		street1, street2, city, state, zip_code, phone,
		tracking_number, shipped_at, delivered_at`

// Get loads the full recruitment state for a study.
func (s *PgRecruitmentStore) Get(ctx context.Context, studyID string) (*domain.RecruitmentState, error) {
	if studyID == "" {
		return nil, domain.NewValidationError("study_id", "study ID is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM recruitment_states WHERE study_id = $1`, stateColumns)

	row := s.db.QueryRow(ctx, query, studyID)
	state, err := scanState(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewStudyNotFoundError(studyID)
		}
		return nil, fmt.Errorf("failed to get recruitment state: %w", err)
	}

	if err := s.loadCohorts(ctx, state); err != nil {
		return nil, err
	}

	return state, nil
}

// loadCohorts attaches the study's cohorts and their participants to state.
func (s *PgRecruitmentStore) loadCohorts(ctx context.Context, state *domain.RecruitmentState) error {
	cohortQuery := fmt.Sprintf(`SELECT %s FROM cohorts WHERE study_id = $1 ORDER BY cohort_number`, cohortColumns)

	rows, err := s.db.Query(ctx, cohortQuery, state.StudyID)
	if err != nil {
		return fmt.Errorf("failed to query cohorts: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*domain.Cohort)
	for rows.Next() {
		cohort, err := scanCohortFromRows(rows)
		if err != nil {
			return fmt.Errorf("failed to scan cohort: %w", err)
		}
		state.Cohorts = append(state.Cohorts, cohort)
		byID[cohort.ID] = cohort
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating cohorts: %w", err)
	}
	rows.Close()

	if len(state.Cohorts) == 0 {
		return nil
	}

	participantQuery := fmt.Sprintf(`
		SELECT %s FROM participant_shipping
		WHERE cohort_id IN (SELECT id FROM cohorts WHERE study_id = $1)
		ORDER BY cohort_id, participant_id`, participantColumns)

	pRows, err := s.db.Query(ctx, participantQuery, state.StudyID)
	if err != nil {
		return fmt.Errorf("failed to query participants: %w", err)
	}
	defer pRows.Close()

	for pRows.Next() {
		p, err := scanParticipantFromRows(pRows)
		if err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		if cohort, ok := byID[p.CohortID]; ok {
			cohort.Participants = append(cohort.Participants, p)
		}
	}
	if err := pRows.Err(); err != nil {
		return fmt.Errorf("error iterating participants: %w", err)
	}

	return nil
}

// Save persists the full state snapshot, replacing any previous snapshot for
// the study. When the underlying DBTX can open a transaction, the multi-table
// write is wrapped in one; otherwise it executes within the caller's
// transaction.
func (s *PgRecruitmentStore) Save(ctx context.Context, state *domain.RecruitmentState) error {
	if state == nil || state.StudyID == "" {
		return domain.NewValidationError("state", "state with a study ID is required")
	}

	if runner, ok := s.db.(txRunner); ok {
		return runner.WithTransaction(ctx, func(tx pgx.Tx) error {
			txStore := &PgRecruitmentStore{db: tx}
			return txStore.saveInTx(ctx, state)
		})
	}

	if beginner, ok := s.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for save: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txStore := &PgRecruitmentStore{db: tx}
		if err := txStore.saveInTx(ctx, state); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	return s.saveInTx(ctx, state)
}

// saveInTx performs the actual snapshot write. Must run within a transaction
// so a failed write never leaves a partial snapshot behind.
func (s *PgRecruitmentStore) saveInTx(ctx context.Context, state *domain.RecruitmentState) error {
	growthJSON, err := json.Marshal(state.WaitlistGrowth)
	if err != nil {
		return fmt.Errorf("failed to marshal waitlist growth: %w", err)
	}

	stateQuery := `
		INSERT INTO recruitment_states (
			study_id, status, target_participants, total_enrolled, waitlist_count,
			conversion_rate, current_window_enrolled, current_window_ends_at, current_cohort_id,
			waitlist_growth, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (study_id) DO UPDATE SET
			status = EXCLUDED.status,
			target_participants = EXCLUDED.target_participants,
			total_enrolled = EXCLUDED.total_enrolled,
			waitlist_count = EXCLUDED.waitlist_count,
			conversion_rate = EXCLUDED.conversion_rate,
			current_window_enrolled = EXCLUDED.current_window_enrolled,
			current_window_ends_at = EXCLUDED.current_window_ends_at,
			current_cohort_id = EXCLUDED.current_cohort_id,
			waitlist_growth = EXCLUDED.waitlist_growth,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.Exec(ctx, stateQuery,
		state.StudyID, state.Status, state.TargetParticipants, state.TotalEnrolled, state.WaitlistCount,
		state.ConversionRate, state.CurrentWindowEnrolled, state.CurrentWindowEndsAt, state.CurrentCohortID,
		growthJSON, state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save recruitment state: %w", err)
	}

	cohortQuery := `
		INSERT INTO cohorts (
			id, study_id, cohort_number, status, tracking_codes_entered,
			all_tracking_entered, delivered_count, avg_ship_time_days, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			tracking_codes_entered = EXCLUDED.tracking_codes_entered,
			all_tracking_entered = EXCLUDED.all_tracking_entered,
			delivered_count = EXCLUDED.delivered_count,
			avg_ship_time_days = EXCLUDED.avg_ship_time_days,
			updated_at = EXCLUDED.updated_at`

	participantQuery := `
		INSERT INTO participant_shipping (
			participant_id, cohort_id, display_name,
			street1, street2, city, state, zip_code, phone,
			tracking_number, shipped_at, delivered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (cohort_id, participant_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			street1 = EXCLUDED.street1,
			street2 = EXCLUDED.street2,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code,
			phone = EXCLUDED.phone,
			tracking_number = EXCLUDED.tracking_number,
			shipped_at = EXCLUDED.shipped_at,
			delivered_at = EXCLUDED.delivered_at`

	for _, cohort := range state.Cohorts {
		_, err = s.db.Exec(ctx, cohortQuery,
			cohort.ID, cohort.StudyID, cohort.CohortNumber, cohort.Status, cohort.TrackingCodesEntered,
			cohort.AllTrackingEntered, cohort.DeliveredCount, cohort.AvgShipTimeDays, cohort.CreatedAt, cohort.UpdatedAt,
		)
		if err != nil {
			if isPgUniqueViolation(err) {
				return fmt.Errorf("duplicate cohort number %d for study %s: %w",
					cohort.CohortNumber, state.StudyID, domain.ErrInvalidInput)
			}
			return fmt.Errorf("failed to save cohort %s: %w", cohort.ID, err)
		}

		for _, p := range cohort.Participants {
			_, err = s.db.Exec(ctx, participantQuery,
				p.ParticipantID, p.CohortID, p.DisplayName,
				p.Address.Street1, p.Address.Street2, p.Address.City, p.Address.State, p.Address.ZipCode, p.Address.Phone,
				p.TrackingNumber, p.ShippedAt, p.DeliveredAt,
			)
			if err != nil {
				return fmt.Errorf("failed to save participant %s: %w", p.ParticipantID, err)
			}
		}
	}

	return nil
}

// List returns the recruitment state of every known study.
func (s *PgRecruitmentStore) List(ctx context.Context) ([]*domain.RecruitmentState, error) {
	query := fmt.Sprintf(`SELECT %s FROM recruitment_states ORDER BY study_id`, stateColumns)

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recruitment states: %w", err)
	}
	defer rows.Close()

	var states []*domain.RecruitmentState
	for rows.Next() {
		state, err := scanStateFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recruitment state: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recruitment states: %w", err)
	}
	rows.Close()

	for _, state := range states {
		if err := s.loadCohorts(ctx, state); err != nil {
			return nil, err
		}
	}

	return states, nil
}

// ListExpiredWindows returns study IDs of open windows whose deadline is at or
// before now.
func (s *PgRecruitmentStore) ListExpiredWindows(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		SELECT study_id FROM recruitment_states
		WHERE status = $1 AND current_window_ends_at IS NOT NULL AND current_window_ends_at <= $2
		ORDER BY study_id`

	rows, err := s.db.Query(ctx, query, domain.StatusWindowOpen, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired windows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan study ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired windows: %w", err)
	}

	return ids, nil
}

// Delete removes a study's recruitment state. Cohort and participant rows are
// removed by ON DELETE CASCADE.
func (s *PgRecruitmentStore) Delete(ctx context.Context, studyID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM recruitment_states WHERE study_id = $1`, studyID)
	if err != nil {
		return fmt.Errorf("failed to delete recruitment state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewStudyNotFoundError(studyID)
	}
	return nil
}

// Reset removes all recruitment state.
func (s *PgRecruitmentStore) Reset(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM recruitment_states`); err != nil {
		return fmt.Errorf("failed to reset recruitment states: %w", err)
	}
	return nil
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// stateScanDest holds the destination pointers for scanning a RecruitmentState row.
// This eliminates code duplication between pgx.Row and pgx.Rows scanning.
type stateScanDest struct {
	state      domain.RecruitmentState
	growthJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *stateScanDest) destinations() []interface{} {
	return []interface{}{
		&d.state.StudyID, &d.state.Status, &d.state.TargetParticipants, &d.state.TotalEnrolled, &d.state.WaitlistCount,
		&d.state.ConversionRate, &d.state.CurrentWindowEnrolled, &d.state.CurrentWindowEndsAt, &d.state.CurrentCohortID,
		&d.growthJSON, &d.state.CreatedAt, &d.state.UpdatedAt,
	}
}

// finalize performs post-scan processing: unmarshals the waitlist growth JSON.
func (d *stateScanDest) finalize() (*domain.RecruitmentState, error) {
	if len(d.growthJSON) > 0 {
		if err := json.Unmarshal(d.growthJSON, &d.state.WaitlistGrowth); err != nil {
			return nil, fmt.Errorf("failed to unmarshal waitlist growth: %w", err)
		}
	}
	return &d.state, nil
}

// scanState scans a single row into a RecruitmentState.
func scanState(row pgx.Row) (*domain.RecruitmentState, error) {
	var dest stateScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanStateFromRows scans the current row from pgx.Rows into a RecruitmentState.
func scanStateFromRows(rows pgx.Rows) (*domain.RecruitmentState, error) {
	var dest stateScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanCohortFromRows scans the current row from pgx.Rows into a Cohort.
func scanCohortFromRows(rows pgx.Rows) (*domain.Cohort, error) {
	var c domain.Cohort
	err := rows.Scan(
		&c.ID, &c.StudyID, &c.CohortNumber, &c.Status, &c.TrackingCodesEntered,
		&c.AllTrackingEntered, &c.DeliveredCount, &c.AvgShipTimeDays, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// scanParticipantFromRows scans the current row from pgx.Rows into a ParticipantShipping.
func scanParticipantFromRows(rows pgx.Rows) (*domain.ParticipantShipping, error) {
	var p domain.ParticipantShipping
	err := rows.Scan(
		&p.ParticipantID, &p.CohortID, &p.DisplayName,
		&p.Address.Street1, &p.Address.Street2, &p.Address.City, &p.Address.State, &p.Address.ZipCode, &p.Address.Phone,
		&p.TrackingNumber, &p.ShippedAt, &p.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
