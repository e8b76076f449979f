// Package procedure manages ordered clinical activities: procedures,
// operations, and imaging studies. The booking coordinator owns the
// pending/scheduled moves; this service owns the rest of the lifecycle.
package procedure

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardflow/wardflow/internal/domain/statushistory"
	"github.com/wardflow/wardflow/internal/platform/clock"
	"github.com/wardflow/wardflow/internal/platform/db"
	"github.com/wardflow/wardflow/internal/workflow"
)

type Service struct {
	repo    Repository
	pool    *pgxpool.Pool
	engine  *workflow.Engine
	history *statushistory.Recorder
	clock   clock.Clock
}

func NewService(repo Repository, pool *pgxpool.Pool, engine *workflow.Engine, history *statushistory.Recorder, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, pool: pool, engine: engine, history: history, clock: clk}
}

// Create registers a new activity order in the pending state.
func (s *Service) Create(ctx context.Context, a *Activity, actor string) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if !ValidKinds[a.Kind] {
		return fmt.Errorf("invalid activity kind: %s", a.Kind)
	}
	initial := workflow.Initial(workflow.KindActivity)
	if a.Status != "" && a.Status != string(initial) {
		return fmt.Errorf("activities must be created with status %s", initial)
	}
	a.Status = string(initial)

	now := s.clock.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	return db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		_, err := s.history.RecordCreation(ctx, a.ID, workflow.KindActivity, initial, actor)
		return err
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Activity, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Activity, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Activity, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) StatusHistory(ctx context.Context, id uuid.UUID) ([]*statushistory.Entry, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.List(ctx, id)
}

// Begin marks the scheduled activity as underway.
func (s *Service) Begin(ctx context.Context, id uuid.UUID, actor, reason string) (*Activity, error) {
	return s.transition(ctx, id, workflow.ActivityInProgress, actor, reason, func(a *Activity, at time.Time) {
		a.StartedAt = &at
	})
}

// Complete closes the activity after it finishes.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor, reason string) (*Activity, error) {
	return s.transition(ctx, id, workflow.ActivityCompleted, actor, reason, func(a *Activity, at time.Time) {
		a.CompletedAt = &at
	})
}

// Cancel voids the order. The booking coordinator releases any active
// booking before cancelling a scheduled activity.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor, reason string) (*Activity, error) {
	if reason == "" {
		return nil, fmt.Errorf("cancellation reason is required")
	}
	return s.transition(ctx, id, workflow.ActivityCancelled, actor, reason, func(a *Activity, at time.Time) {
		a.CancelledAt = &at
		a.CancelReason = &reason
	})
}

// transition runs one engine-validated status change. The write is
// guarded on the status the engine validated; a racing move on the same
// activity surfaces as db.ErrStaleRow instead of a silent overwrite.
func (s *Service) transition(ctx context.Context, id uuid.UUID, target workflow.State, actor, reason string, apply func(*Activity, time.Time)) (*Activity, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("activity not found: %w", err)
	}
	current, err := workflow.ParseState(workflow.KindActivity, a.Status)
	if err != nil {
		return nil, err
	}
	att, err := s.engine.Attempt(workflow.KindActivity, current, target, actor, reason)
	if err != nil {
		return nil, err
	}

	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		a.Status = string(att.To)
		a.UpdatedAt = att.At
		if apply != nil {
			apply(a, att.At)
		}
		if err := s.repo.UpdateFromStatus(ctx, a, string(att.From)); err != nil {
			return err
		}
		_, err := s.history.Record(ctx, a.ID, att, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
