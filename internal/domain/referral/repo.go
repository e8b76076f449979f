package referral

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, l *Letter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Letter, error)
	Update(ctx context.Context, l *Letter) error
	// UpdateFromStatus writes l only if the stored row still has status
	// from; otherwise it returns db.ErrStaleRow.
	UpdateFromStatus(ctx context.Context, l *Letter, from string) error
	List(ctx context.Context, limit, offset int) ([]*Letter, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Letter, int, error)
}
