package facility

import (
	"time"

	"github.com/google/uuid"
)

// Resource kinds that accept bookings.
const (
	KindProcedureRoom = "procedure-room"
	KindOperatingRoom = "operating-room"
	KindImaging       = "imaging"
)

// ValidKinds enumerates the bookable resource kinds.
var ValidKinds = map[string]bool{
	KindProcedureRoom: true,
	KindOperatingRoom: true,
	KindImaging:       true,
}

// Resource maps to the resource table. Operational distinguishes rooms in
// service from those under maintenance; Available is the day-to-day toggle
// ward staff use to close a room without decommissioning it.
type Resource struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Kind        string    `db:"kind" json:"kind"`
	Location    *string   `db:"location" json:"location,omitempty"`
	Operational bool      `db:"operational" json:"operational"`
	Available   bool      `db:"available" json:"available"`
	// MaxBookingsPerDay caps active bookings per calendar day when set.
	MaxBookingsPerDay *int      `db:"max_bookings_per_day" json:"max_bookings_per_day,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Usable reports whether the resource can take new bookings at all.
func (r *Resource) Usable() bool {
	return r.Operational && r.Available
}
