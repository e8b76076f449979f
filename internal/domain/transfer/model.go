package transfer

import (
	"time"

	"github.com/google/uuid"
)

// Transfer maps to the department_transfer table. It tracks a patient
// moving between departments, including the approval handshake between
// the sending and receiving sides.
type Transfer struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterID      *uuid.UUID `db:"encounter_id" json:"encounter_id,omitempty"`
	FromDepartmentID uuid.UUID  `db:"from_department_id" json:"from_department_id"`
	ToDepartmentID   uuid.UUID  `db:"to_department_id" json:"to_department_id"`
	Status           string     `db:"status" json:"status"`
	ReasonText       *string    `db:"reason_text" json:"reason_text,omitempty"`
	RequestedAt      time.Time  `db:"requested_at" json:"requested_at"`
	SubmittedAt      *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt       *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	AcceptedAt       *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	DepartedAt       *time.Time `db:"departed_at" json:"departed_at,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	RejectedAt       *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectReason     *string    `db:"reject_reason" json:"reject_reason,omitempty"`
	CancelledAt      *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason     *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}
