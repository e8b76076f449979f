package encounter

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists encounters. There is no Delete: encounters leave
// circulation by cancellation, which preserves their history.
type Repository interface {
	Create(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	Update(ctx context.Context, enc *Encounter) error
	// UpdateFromStatus writes enc only if the stored row still has status
	// from; otherwise it returns db.ErrStaleRow. Transitions use this so a
	// concurrent move on the same encounter cannot be silently overwritten.
	UpdateFromStatus(ctx context.Context, enc *Encounter, from string) error
	List(ctx context.Context, limit, offset int) ([]*Encounter, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error)
}
