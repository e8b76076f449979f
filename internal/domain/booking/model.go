package booking

import (
	"time"

	"github.com/google/uuid"
)

// Booking maps to the booking table: one reservation of a resource for an
// activity. Bookings are never deleted; releasing one flips Active off so
// the reservation history stays intact.
type Booking struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ResourceID     uuid.UUID  `db:"resource_id" json:"resource_id"`
	ActivityID     uuid.UUID  `db:"activity_id" json:"activity_id"`
	ScheduledStart time.Time  `db:"scheduled_start" json:"scheduled_start"`
	// ScheduledEnd is nil for open-ended bookings whose duration is not
	// known up front.
	ScheduledEnd *time.Time `db:"scheduled_end" json:"scheduled_end,omitempty"`
	Active       bool       `db:"active" json:"active"`
	CancelledAt  *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
