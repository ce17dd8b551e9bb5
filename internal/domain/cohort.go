package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cohort is the batch of participants enrolled during one recruitment window,
// shipped and tracked together. A cohort is mutable only while it is the
// current cohort of its RecruitmentState; past cohorts are immutable history.
type Cohort struct {
	ID      uuid.UUID `json:"id"`
	StudyID string    `json:"study_id"`

	// CohortNumber is 1-based and sequential per study.
	CohortNumber int `json:"cohort_number"`

	Status CohortStatus `json:"status"`

	// TrackingCodesEntered counts participants with a tracking number on
	// file. Re-entering a code for the same participant does not double-count.
	TrackingCodesEntered int `json:"tracking_codes_entered"`

	// AllTrackingEntered is true once every participant has a tracking
	// number. Derived; kept denormalized for query surfaces.
	AllTrackingEntered bool `json:"all_tracking_entered"`

	// DeliveredCount counts participants confirmed delivered. Updated by the
	// delivery-confirmation path, independently of tracking entry.
	DeliveredCount int `json:"delivered_count"`

	// AvgShipTimeDays is the mean shipped-to-delivered interval in days,
	// computed once the cohort reaches complete. Zero until then.
	AvgShipTimeDays float64 `json:"avg_ship_time_days"`

	// Participants holds the shipping record per participant. The set is
	// assigned exactly once at formation and never grows or shrinks.
	Participants []*ParticipantShipping `json:"participants"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Size returns the number of participants in the cohort.
func (c *Cohort) Size() int {
	return len(c.Participants)
}

// Participant returns the shipping record for the given participant, or nil.
func (c *Cohort) Participant(participantID string) *ParticipantShipping {
	for _, p := range c.Participants {
		if p.ParticipantID == participantID {
			return p
		}
	}
	return nil
}

// AllAddressesOnFile reports whether every participant has a shippable
// address (street1, city and zip at minimum).
func (c *Cohort) AllAddressesOnFile() bool {
	if len(c.Participants) == 0 {
		return false
	}
	for _, p := range c.Participants {
		if !p.Address.Shippable() {
			return false
		}
	}
	return true
}

// AllDelivered reports whether every participant has a delivery confirmation.
func (c *Cohort) AllDelivered() bool {
	return len(c.Participants) > 0 && c.DeliveredCount >= len(c.Participants)
}

// Clone returns a deep copy of the cohort.
func (c *Cohort) Clone() *Cohort {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Participants = make([]*ParticipantShipping, len(c.Participants))
	for i, p := range c.Participants {
		clone.Participants[i] = p.Clone()
	}
	return &clone
}

// ParticipantShipping is the per-participant shipping record owned by a cohort.
type ParticipantShipping struct {
	ParticipantID string    `json:"participant_id"`
	CohortID      uuid.UUID `json:"cohort_id"`
	DisplayName   string    `json:"display_name,omitempty"`
	Address       Address   `json:"address"`

	// TrackingNumber is empty until an operator enters the carrier code.
	TrackingNumber string `json:"tracking_number,omitempty"`

	// ShippedAt records when the tracking number was first entered.
	ShippedAt *time.Time `json:"shipped_at,omitempty"`

	// DeliveredAt records the delivery confirmation, when one arrives.
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// HasTracking reports whether a tracking number is on file.
func (p *ParticipantShipping) HasTracking() bool {
	return p.TrackingNumber != ""
}

// Clone returns a deep copy of the shipping record.
func (p *ParticipantShipping) Clone() *ParticipantShipping {
	if p == nil {
		return nil
	}
	clone := *p
	if p.ShippedAt != nil {
		t := *p.ShippedAt
		clone.ShippedAt = &t
	}
	if p.DeliveredAt != nil {
		t := *p.DeliveredAt
		clone.DeliveredAt = &t
	}
	return &clone
}

// Address is a participant's shipping address. All fields are optional until
// address collection completes.
type Address struct {
	Street1 string `json:"street1,omitempty"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Empty reports whether no address field is populated.
func (a Address) Empty() bool {
	return a == Address{}
}

// Shippable reports whether the address carries the minimum fields a carrier
// label needs.
func (a Address) Shippable() bool {
	return a.Street1 != "" && a.City != "" && a.ZipCode != ""
}
