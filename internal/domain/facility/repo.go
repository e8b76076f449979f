package facility

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, res *Resource) error
	GetByID(ctx context.Context, id uuid.UUID) (*Resource, error)
	Update(ctx context.Context, res *Resource) error
	List(ctx context.Context, kind string, limit, offset int) ([]*Resource, int, error)
}
