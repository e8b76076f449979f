package statushistory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*Entry, error)
	Latest(ctx context.Context, entityID uuid.UUID) (*Entry, error)
}
