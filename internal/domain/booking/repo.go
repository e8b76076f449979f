package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	// GetActiveByActivity returns the activity's live booking, or nil.
	GetActiveByActivity(ctx context.Context, activityID uuid.UUID) (*Booking, error)
	ListActiveByResource(ctx context.Context, resourceID uuid.UUID) ([]*Booking, error)
	ListByResource(ctx context.Context, resourceID uuid.UUID, limit, offset int) ([]*Booking, int, error)
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error
}
