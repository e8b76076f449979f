// Package transfer manages department-to-department patient moves. The
// sending department requests, an approver may gate it, the receiving
// department accepts, and the move itself runs through in-transit.
package transfer

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

// Create registers a transfer request in the requested state.
func (s *Service) Create(ctx context.Context, tr *Transfer, actor string) error {
	if tr.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if tr.FromDepartmentID == uuid.Nil || tr.ToDepartmentID == uuid.Nil {
		return fmt.Errorf("from_department_id and to_department_id are required")
	}
	if tr.FromDepartmentID == tr.ToDepartmentID {
		return fmt.Errorf("transfer must target a different department")
	}
	initial := workflow.Initial(workflow.KindTransfer)
	if tr.Status != "" && tr.Status != string(initial) {
		return fmt.Errorf("transfers must be created with status %s", initial)
	}
	tr.Status = string(initial)

	now := s.clock.Now()
	tr.RequestedAt = now
	tr.CreatedAt = now
	tr.UpdatedAt = now

	return db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, tr); err != nil {
			return err
		}
		_, err := s.history.RecordCreation(ctx, tr.ID, workflow.KindTransfer, initial, actor)
		return err
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transfer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Transfer, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Transfer, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) StatusHistory(ctx context.Context, id uuid.UUID) ([]*statushistory.Entry, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.List(ctx, id)
}

// SubmitForApproval routes the request through the approval gate.
func (s *Service) SubmitForApproval(ctx context.Context, id uuid.UUID, actor, reason string) (*Transfer, error) {
	return s.transition(ctx, id, workflow.TransferPendingApproval, actor, reason, func(tr *Transfer, at time.Time) {
		tr.SubmittedAt = &at
	})
}

// Approve clears the request for acceptance by the receiving department.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor, reason string) (*Transfer, error) {
	return s.transition(ctx, id, workflow.TransferApproved, actor, reason, func(tr *Transfer, at time.Time) {
		tr.ApprovedAt = &at
	})
}

// Accept records the receiving department taking the patient. Requests
// that skipped the approval gate may be accepted directly.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, actor, reason string) (*Transfer, error) {
	return s.transition(ctx, id, workflow.TransferAccepted, actor, reason, func(tr *Transfer, at time.Time) {
		tr.AcceptedAt = &at
	})
}

// Reject turns the request down. A reason is required.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor, reason string) (*Transfer, error) {
	if reason == "" {
		return nil, fmt.Errorf("rejection reason is required")
	}
	return s.transition(ctx, id, workflow.TransferRejected, actor, reason, func(tr *Transfer, at time.Time) {
		tr.RejectedAt = &at
		tr.RejectReason = &reason
	})
}

// Depart marks the patient as physically in transit.
func (s *Service) Depart(ctx context.Context, id uuid.UUID, actor, reason string) (*Transfer, error) {
	return s.transition(ctx, id, workflow.TransferInTransit, actor, reason, func(tr *Transfer, at time.Time) {
		tr.DepartedAt = &at
	})
}

// Complete closes the transfer once the patient is settled.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor, reason string) (*Transfer, error) {
	return s.transition(ctx, id, workflow.TransferCompleted, actor, reason, func(tr *Transfer, at time.Time) {
		tr.CompletedAt = &at
	})
}

// Cancel withdraws the request. A reason is required.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor, reason string) (*Transfer, error) {
	if reason == "" {
		return nil, fmt.Errorf("cancellation reason is required")
	}
	return s.transition(ctx, id, workflow.TransferCancelled, actor, reason, func(tr *Transfer, at time.Time) {
		tr.CancelledAt = &at
		tr.CancelReason = &reason
	})
}

// transition runs one engine-validated status change. The write is
// guarded on the status the engine validated; a racing move on the same
// transfer surfaces as db.ErrStaleRow instead of a silent overwrite.
func (s *Service) transition(ctx context.Context, id uuid.UUID, target workflow.State, actor, reason string, apply func(*Transfer, time.Time)) (*Transfer, error) {
	tr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("transfer not found: %w", err)
	}
	current, err := workflow.ParseState(workflow.KindTransfer, tr.Status)
	if err != nil {
		return nil, err
	}
	att, err := s.engine.Attempt(workflow.KindTransfer, current, target, actor, reason)
	if err != nil {
		return nil, err
	}

	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		tr.Status = string(att.To)
		tr.UpdatedAt = att.At
		if apply != nil {
			apply(tr, att.At)
		}
		if err := s.repo.UpdateFromStatus(ctx, tr, string(att.From)); err != nil {
			return err
		}
		_, err := s.history.Record(ctx, tr.ID, att, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}
