// Package encounter manages patient visit lifecycles from planning through
// discharge. Status moves only through the workflow engine and every move
// is mirrored into status history.
package encounter

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

// Create registers a new encounter. Encounters always start planned; a
// request naming any other status is refused rather than silently fixed.
func (s *Service) Create(ctx context.Context, enc *Encounter, actor string) error {
	if enc.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	initial := workflow.Initial(workflow.KindEncounter)
	if enc.Status != "" && enc.Status != string(initial) {
		return fmt.Errorf("encounters must be created with status %s", initial)
	}
	enc.Status = string(initial)

	now := s.clock.Now()
	if enc.PlannedAt.IsZero() {
		enc.PlannedAt = now
	}
	enc.CreatedAt = now
	enc.UpdatedAt = now

	return db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, enc); err != nil {
			return err
		}
		_, err := s.history.RecordCreation(ctx, enc.ID, workflow.KindEncounter, initial, actor)
		return err
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) StatusHistory(ctx context.Context, id uuid.UUID) ([]*statushistory.Entry, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.List(ctx, id)
}

// Arrive marks the patient as present at the facility.
func (s *Service) Arrive(ctx context.Context, id uuid.UUID, actor, reason string) (*Encounter, error) {
	return s.transition(ctx, id, workflow.EncounterArrived, actor, reason, func(enc *Encounter, at time.Time) {
		enc.ArrivedAt = &at
	})
}

// Triage records the triage assessment.
func (s *Service) Triage(ctx context.Context, id uuid.UUID, actor, reason string) (*Encounter, error) {
	return s.transition(ctx, id, workflow.EncounterTriaged, actor, reason, func(enc *Encounter, at time.Time) {
		enc.TriagedAt = &at
	})
}

// Begin starts active care.
func (s *Service) Begin(ctx context.Context, id uuid.UUID, actor, reason string) (*Encounter, error) {
	return s.transition(ctx, id, workflow.EncounterInProgress, actor, reason, func(enc *Encounter, at time.Time) {
		enc.StartedAt = &at
	})
}

// Finish closes the encounter and computes length of stay in the same
// update, counted from arrival (or from the planned time if the arrival
// was never stamped).
func (s *Service) Finish(ctx context.Context, id uuid.UUID, actor, reason string) (*Encounter, error) {
	return s.transition(ctx, id, workflow.EncounterFinished, actor, reason, func(enc *Encounter, at time.Time) {
		enc.FinishedAt = &at
		start := enc.PlannedAt
		if enc.ArrivedAt != nil {
			start = *enc.ArrivedAt
		}
		hours := int(at.Sub(start).Hours())
		if hours < 0 {
			hours = 0
		}
		days := hours / 24
		enc.LengthHours = &hours
		enc.LengthDays = &days
	})
}

// Cancel voids the encounter. A reason is required so the audit trail
// explains the cancellation.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor, reason string) (*Encounter, error) {
	if reason == "" {
		return nil, fmt.Errorf("cancellation reason is required")
	}
	return s.transition(ctx, id, workflow.EncounterCancelled, actor, reason, func(enc *Encounter, at time.Time) {
		enc.CancelledAt = &at
		enc.CancelReason = &reason
	})
}

// transition runs one engine-validated status change. The entity update
// and its history entry commit together; a rejection leaves the encounter
// untouched. The write is guarded on the status the engine validated, so
// when two transitions race on one encounter the loser gets
// db.ErrStaleRow instead of overwriting the winner.
func (s *Service) transition(ctx context.Context, id uuid.UUID, target workflow.State, actor, reason string, apply func(*Encounter, time.Time)) (*Encounter, error) {
	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("encounter not found: %w", err)
	}
	current, err := workflow.ParseState(workflow.KindEncounter, enc.Status)
	if err != nil {
		return nil, err
	}
	att, err := s.engine.Attempt(workflow.KindEncounter, current, target, actor, reason)
	if err != nil {
		return nil, err
	}

	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		enc.Status = string(att.To)
		enc.UpdatedAt = att.At
		if apply != nil {
			apply(enc, att.At)
		}
		if err := s.repo.UpdateFromStatus(ctx, enc, string(att.From)); err != nil {
			return err
		}
		_, err := s.history.Record(ctx, enc.ID, att, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return enc, nil
}
