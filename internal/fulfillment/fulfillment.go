// Package fulfillment manages the shipping lifecycle of a formed cohort:
// address collection, tracking entry, delivery confirmation, and the carrier
// manifest export.
//
// All functions mutate the cohort in place and assume the caller holds the
// study lock; the engine persists the surrounding state snapshot after each
// successful call.
package fulfillment

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/trialkit/recruitment-service/internal/domain"
)

// NewCohort creates the next cohort for a study in the recruiting status.
// Participants are assigned later, when the window closes.
func NewCohort(studyID string, cohortNumber int, now time.Time) *domain.Cohort {
	return &domain.Cohort{
		ID:           uuid.New(),
		StudyID:      studyID,
		CohortNumber: cohortNumber,
		Status:       domain.CohortStatusRecruiting,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Form finalizes a recruiting cohort with its participant set and moves it to
// collecting_addresses. The participant set is assigned exactly once.
func Form(cohort *domain.Cohort, participants []*domain.ParticipantShipping, now time.Time) error {
	if cohort.Status != domain.CohortStatusRecruiting {
		return fmt.Errorf("cohort %d is %s, not recruiting: %w",
			cohort.CohortNumber, cohort.Status, domain.ErrInvalidTransition)
	}
	if len(participants) == 0 {
		return fmt.Errorf("cannot form cohort %d with no participants: %w",
			cohort.CohortNumber, domain.ErrInvalidInput)
	}

	for _, p := range participants {
		p.CohortID = cohort.ID
	}
	cohort.Participants = participants
	cohort.Status = domain.CohortStatusCollectingAddresses
	cohort.UpdatedAt = now
	return nil
}

// UpdateAddress records a participant's shipping address. When the cohort is
// collecting addresses and every participant becomes shippable, the cohort
// advances to pending_shipment.
func UpdateAddress(cohort *domain.Cohort, participantID string, address domain.Address, now time.Time) error {
	if cohort.Status.IsTerminal() {
		return fmt.Errorf("cohort %d is complete: %w", cohort.CohortNumber, domain.ErrInvalidTransition)
	}

	p := cohort.Participant(participantID)
	if p == nil {
		return domain.NewUnknownParticipantError(cohort.StudyID, cohort.ID, participantID)
	}
	if !address.Shippable() {
		return domain.NewValidationError("address", "street1, city, and zip_code are required")
	}

	p.Address = address
	cohort.UpdatedAt = now

	if cohort.Status == domain.CohortStatusCollectingAddresses && cohort.AllAddressesOnFile() {
		cohort.Status = domain.CohortStatusPendingShipment
	}
	return nil
}

// RecordTracking stores a carrier tracking number for a participant. Returns
// whether this was the participant's first tracking entry. Re-entry
// overwrites the stored number without double-counting. Once every
// participant has a tracking number the cohort advances to shipping.
func RecordTracking(cohort *domain.Cohort, participantID, trackingNumber string, now time.Time) (bool, error) {
	if cohort.Status.IsTerminal() {
		return false, fmt.Errorf("cohort %d is complete: %w", cohort.CohortNumber, domain.ErrInvalidTransition)
	}
	if cohort.Status == domain.CohortStatusRecruiting {
		return false, fmt.Errorf("cohort %d is still recruiting: %w", cohort.CohortNumber, domain.ErrInvalidTransition)
	}
	if trackingNumber == "" {
		return false, domain.NewValidationError("tracking_number", "tracking number is required")
	}

	p := cohort.Participant(participantID)
	if p == nil {
		return false, domain.NewUnknownParticipantError(cohort.StudyID, cohort.ID, participantID)
	}

	firstEntry := !p.HasTracking()
	p.TrackingNumber = trackingNumber
	if firstEntry {
		shippedAt := now
		p.ShippedAt = &shippedAt
		cohort.TrackingCodesEntered++
	}
	cohort.UpdatedAt = now

	if cohort.TrackingCodesEntered == cohort.Size() {
		cohort.AllTrackingEntered = true
		if cohort.Status != domain.CohortStatusShipping {
			cohort.Status = domain.CohortStatusShipping
		}
	}

	return firstEntry, nil
}

// MarkDelivered records a delivery confirmation for a participant. Returns
// whether the whole cohort is now delivered. When the last participant is
// confirmed the cohort completes and the average ship time is computed.
func MarkDelivered(cohort *domain.Cohort, participantID string, now time.Time) (bool, error) {
	if cohort.Status.IsTerminal() {
		return false, fmt.Errorf("cohort %d is complete: %w", cohort.CohortNumber, domain.ErrInvalidTransition)
	}

	p := cohort.Participant(participantID)
	if p == nil {
		return false, domain.NewUnknownParticipantError(cohort.StudyID, cohort.ID, participantID)
	}
	if !p.HasTracking() {
		return false, fmt.Errorf("participant %s has no tracking number: %w", participantID, domain.ErrInvalidTransition)
	}

	if p.DeliveredAt == nil {
		deliveredAt := now
		p.DeliveredAt = &deliveredAt
		cohort.DeliveredCount++
	}
	cohort.UpdatedAt = now

	if cohort.AllDelivered() {
		cohort.Status = domain.CohortStatusComplete
		cohort.AvgShipTimeDays = averageShipTimeDays(cohort)
		return true, nil
	}
	return false, nil
}

// averageShipTimeDays computes the mean shipped-to-delivered interval across
// participants with both timestamps, rounded to one decimal place.
func averageShipTimeDays(cohort *domain.Cohort) float64 {
	var total time.Duration
	var counted int
	for _, p := range cohort.Participants {
		if p.ShippedAt != nil && p.DeliveredAt != nil {
			total += p.DeliveredAt.Sub(*p.ShippedAt)
			counted++
		}
	}
	if counted == 0 {
		return 0
	}
	days := total.Hours() / 24 / float64(counted)
	return math.Round(days*10) / 10
}

// manifestHeader is the column layout the shipping partner's import expects.
var manifestHeader = []string{
	"Participant ID", "Name", "Street 1", "Street 2", "City", "State", "Zip Code", "Phone",
}

// WriteManifest writes the cohort's shipping manifest as CSV. Participants
// without any address on file are skipped; the manifest is for label
// printing, not roster export.
func WriteManifest(w io.Writer, cohort *domain.Cohort) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(manifestHeader); err != nil {
		return fmt.Errorf("failed to write manifest header: %w", err)
	}

	for _, p := range cohort.Participants {
		if p.Address.Empty() {
			continue
		}
		record := []string{
			p.ParticipantID,
			p.DisplayName,
			p.Address.Street1,
			p.Address.Street2,
			p.Address.City,
			p.Address.State,
			p.Address.ZipCode,
			p.Address.Phone,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write manifest row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
