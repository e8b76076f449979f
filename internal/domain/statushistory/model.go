package statushistory

import (
	"time"

	"github.com/google/uuid"
)

// Entry maps to the status_history table. Entries are append-only: one row
// per successful transition plus one creation row per entity. The creation
// row is the only one with a nil FromStatus.
type Entry struct {
	ID         uuid.UUID `db:"id" json:"id"`
	EntityID   uuid.UUID `db:"entity_id" json:"entity_id"`
	EntityKind string    `db:"entity_kind" json:"entity_kind"`
	FromStatus *string   `db:"from_status" json:"from_status,omitempty"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	ChangedBy  string    `db:"changed_by" json:"changed_by"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
	// Seq breaks ordering ties when wall-clock timestamps collide.
	Seq       int64     `db:"seq" json:"seq"`
	ChangedAt time.Time `db:"changed_at" json:"changed_at"`
}

// IsCreation reports whether this is the entry written at entity creation.
func (e *Entry) IsCreation() bool { return e.FromStatus == nil }
