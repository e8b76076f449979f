package transfer

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, tr *Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error)
	Update(ctx context.Context, tr *Transfer) error
	// UpdateFromStatus writes tr only if the stored row still has status
	// from; otherwise it returns db.ErrStaleRow.
	UpdateFromStatus(ctx context.Context, tr *Transfer, from string) error
	List(ctx context.Context, limit, offset int) ([]*Transfer, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Transfer, int, error)
}
