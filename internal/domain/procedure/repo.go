package procedure

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Activity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Activity, error)
	Update(ctx context.Context, a *Activity) error
	// UpdateFromStatus writes a only if the stored row still has status
	// from; otherwise it returns db.ErrStaleRow. Transitions and the
	// booking coordinator use this to fence out concurrent moves.
	UpdateFromStatus(ctx context.Context, a *Activity, from string) error
	List(ctx context.Context, limit, offset int) ([]*Activity, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Activity, int, error)
}
