// Package facility manages the bookable resources of the hospital:
// procedure rooms, operating rooms, and imaging stations.
package facility

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wardflow/wardflow/internal/platform/clock"
)

type Service struct {
	repo  Repository
	clock clock.Clock
}

func NewService(repo Repository, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, clock: clk}
}

func (s *Service) Create(ctx context.Context, res *Resource) error {
	if res.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !ValidKinds[res.Kind] {
		return fmt.Errorf("invalid resource kind: %s", res.Kind)
	}
	if res.MaxBookingsPerDay != nil && *res.MaxBookingsPerDay < 1 {
		return fmt.Errorf("max_bookings_per_day must be positive")
	}
	now := s.clock.Now()
	res.Operational = true
	res.Available = true
	res.CreatedAt = now
	res.UpdatedAt = now
	return s.repo.Create(ctx, res)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Resource, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, kind string, limit, offset int) ([]*Resource, int, error) {
	if kind != "" && !ValidKinds[kind] {
		return nil, 0, fmt.Errorf("invalid resource kind: %s", kind)
	}
	return s.repo.List(ctx, kind, limit, offset)
}

func (s *Service) Update(ctx context.Context, res *Resource) error {
	if res.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !ValidKinds[res.Kind] {
		return fmt.Errorf("invalid resource kind: %s", res.Kind)
	}
	if res.MaxBookingsPerDay != nil && *res.MaxBookingsPerDay < 1 {
		return fmt.Errorf("max_bookings_per_day must be positive")
	}
	res.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, res)
}

// SetAvailability toggles the day-to-day availability flag.
func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resource not found: %w", err)
	}
	res.Available = available
	res.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SetOperational marks a resource as in or out of service.
func (s *Service) SetOperational(ctx context.Context, id uuid.UUID, operational bool) (*Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resource not found: %w", err)
	}
	res.Operational = operational
	res.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}
