package referral

import (
	"time"

	"github.com/google/uuid"
)

// Letter maps to the referral_letter table. A letter is drafted, signed
// by the referring practitioner, sent to the target facility, and then
// tracked until the patient's care there concludes.
type Letter struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterID    *uuid.UUID `db:"encounter_id" json:"encounter_id,omitempty"`
	PractitionerID *uuid.UUID `db:"practitioner_id" json:"practitioner_id,omitempty"`
	TargetFacility string     `db:"target_facility" json:"target_facility"`
	Diagnosis      *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	ReasonText     *string    `db:"reason_text" json:"reason_text,omitempty"`
	Status         string     `db:"status" json:"status"`
	SubmittedAt    *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	SignedAt       *time.Time `db:"signed_at" json:"signed_at,omitempty"`
	SentAt         *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	AcceptedAt     *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	TransferredAt  *time.Time `db:"transferred_at" json:"transferred_at,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	RejectedAt     *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectReason   *string    `db:"reject_reason" json:"reject_reason,omitempty"`
	CancelledAt    *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason   *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
