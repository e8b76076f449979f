package procedure

import (
	"time"

	"github.com/google/uuid"

	"github.com/wardflow/wardflow/internal/workflow"
)

// Activity kinds. The kind decides which resource kinds may host it.
const (
	KindProcedure = "procedure"
	KindOperation = "operation"
	KindImaging   = "imaging"
)

var ValidKinds = map[string]bool{
	KindProcedure: true,
	KindOperation: true,
	KindImaging:   true,
}

// Activity maps to the activity table: an ordered procedure, operation,
// or imaging study for a patient. Scheduling details are filled in when a
// booking is made and cleared when it is released.
type Activity struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterID    *uuid.UUID `db:"encounter_id" json:"encounter_id,omitempty"`
	Kind           string     `db:"kind" json:"kind"`
	Description    *string    `db:"description" json:"description,omitempty"`
	Status         string     `db:"status" json:"status"`
	ResourceID     *uuid.UUID `db:"resource_id" json:"resource_id,omitempty"`
	ScheduledStart *time.Time `db:"scheduled_start" json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `db:"scheduled_end" json:"scheduled_end,omitempty"`
	// RescheduleCount tracks how many times the booking was moved.
	RescheduleCount int        `db:"reschedule_count" json:"reschedule_count"`
	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason    *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// CanBeScheduled reports whether the activity may receive a new booking.
func (a *Activity) CanBeScheduled() bool {
	return a.Status == string(workflow.ActivityPending)
}
