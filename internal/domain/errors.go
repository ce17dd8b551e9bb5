package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for common error conditions.
var (
	// ErrStudyNotFound indicates a command or query against an uninitialized study.
	ErrStudyNotFound = errors.New("study not found")

	// ErrInvalidTransition indicates a command whose status precondition is unmet.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrUnknownParticipant indicates a participant not in the current cohort.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrCapacityExceeded indicates an attempt to enroll past the study target.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCohortNotFound indicates a cohort lookup that matched nothing.
	ErrCohortNotFound = errors.New("cohort not found")
)

// StudyNotFoundError provides details about a missing recruitment state.
type StudyNotFoundError struct {
	StudyID string
}

// Error implements the error interface.
func (e *StudyNotFoundError) Error() string {
	return fmt.Sprintf("no recruitment state for study %s", e.StudyID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *StudyNotFoundError) Unwrap() error {
	return ErrStudyNotFound
}

// InvalidTransitionError carries the attempted command and the status it was
// rejected in, so callers can render an accurate error.
type InvalidTransitionError struct {
	StudyID string
	Command string
	Status  RecruitmentStatus
	Reason  string
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s study %s in status %s: %s", e.Command, e.StudyID, e.Status, e.Reason)
	}
	return fmt.Sprintf("cannot %s study %s in status %s", e.Command, e.StudyID, e.Status)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// UnknownParticipantError provides details about a participant that is not in
// the current cohort.
type UnknownParticipantError struct {
	StudyID       string
	CohortID      uuid.UUID
	ParticipantID string
}

// Error implements the error interface.
func (e *UnknownParticipantError) Error() string {
	return fmt.Sprintf("participant %s is not in cohort %s of study %s", e.ParticipantID, e.CohortID, e.StudyID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *UnknownParticipantError) Unwrap() error {
	return ErrUnknownParticipant
}

// CapacityExceededError provides details about an enrollment attempt past the
// study target outside the clamped simulation path.
type CapacityExceededError struct {
	StudyID   string
	Target    int
	Attempted int
}

// Error implements the error interface.
func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("study %s: enrolling %d would exceed target %d", e.StudyID, e.Attempted, e.Target)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *CapacityExceededError) Unwrap() error {
	return ErrCapacityExceeded
}

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewStudyNotFoundError creates a new StudyNotFoundError.
func NewStudyNotFoundError(studyID string) *StudyNotFoundError {
	return &StudyNotFoundError{StudyID: studyID}
}

// NewInvalidTransitionError creates a new InvalidTransitionError.
func NewInvalidTransitionError(studyID, command string, status RecruitmentStatus, reason string) *InvalidTransitionError {
	return &InvalidTransitionError{
		StudyID: studyID,
		Command: command,
		Status:  status,
		Reason:  reason,
	}
}

// NewUnknownParticipantError creates a new UnknownParticipantError.
func NewUnknownParticipantError(studyID string, cohortID uuid.UUID, participantID string) *UnknownParticipantError {
	return &UnknownParticipantError{
		StudyID:       studyID,
		CohortID:      cohortID,
		ParticipantID: participantID,
	}
}

// NewCapacityExceededError creates a new CapacityExceededError.
func NewCapacityExceededError(studyID string, target, attempted int) *CapacityExceededError {
	return &CapacityExceededError{
		StudyID:   studyID,
		Target:    target,
		Attempted: attempted,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
