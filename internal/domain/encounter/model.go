package encounter

import (
	"time"

	"github.com/google/uuid"
)

// Encounter maps to the encounter table. The status column only ever
// changes through the workflow engine; each milestone gets its own
// timestamp so the record reads as a timeline.
type Encounter struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	PractitionerID *uuid.UUID `db:"practitioner_id" json:"practitioner_id,omitempty"`
	DepartmentID   *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	Status         string     `db:"status" json:"status"`
	ReasonText     *string    `db:"reason_text" json:"reason_text,omitempty"`
	PlannedAt      time.Time  `db:"planned_at" json:"planned_at"`
	ArrivedAt      *time.Time `db:"arrived_at" json:"arrived_at,omitempty"`
	TriagedAt      *time.Time `db:"triaged_at" json:"triaged_at,omitempty"`
	StartedAt      *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt     *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	CancelledAt    *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason   *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	// Length of stay, computed when the encounter finishes. Hours are
	// truncated; days are whole 24-hour periods.
	LengthHours *int      `db:"length_hours" json:"length_hours,omitempty"`
	LengthDays  *int      `db:"length_days" json:"length_days,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
