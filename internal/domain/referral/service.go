// Package referral manages outbound referral letters. The letter's state
// machine enforces the clinical paperwork order: a letter cannot be sent
// before it is signed, and once accepted by the target facility it can
// never return to draft.
package referral

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

// Create drafts a new referral letter.
func (s *Service) Create(ctx context.Context, l *Letter, actor string) error {
	if l.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if l.TargetFacility == "" {
		return fmt.Errorf("target_facility is required")
	}
	initial := workflow.Initial(workflow.KindReferral)
	if l.Status != "" && l.Status != string(initial) {
		return fmt.Errorf("referral letters must be created with status %s", initial)
	}
	l.Status = string(initial)

	now := s.clock.Now()
	l.CreatedAt = now
	l.UpdatedAt = now

	return db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, l); err != nil {
			return err
		}
		_, err := s.history.RecordCreation(ctx, l.ID, workflow.KindReferral, initial, actor)
		return err
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Letter, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Letter, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Letter, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) StatusHistory(ctx context.Context, id uuid.UUID) ([]*statushistory.Entry, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.List(ctx, id)
}

// SubmitForSignature hands the draft to the referring practitioner.
func (s *Service) SubmitForSignature(ctx context.Context, id uuid.UUID, actor, reason string) (*Letter, error) {
	return s.transition(ctx, id, workflow.ReferralPendingSignature, actor, reason, func(l *Letter, at time.Time) {
		l.SubmittedAt = &at
	})
}

// Sign records the practitioner's signature.
func (s *Service) Sign(ctx context.Context, id uuid.UUID, actor, reason string) (*Letter, error) {
	return s.transition(ctx, id, workflow.ReferralSigned, actor, reason, func(l *Letter, at time.Time) {
		l.SignedAt = &at
	})
}

// Send dispatches the signed letter to the target facility.
func (s *Service) Send(ctx context.Context, id uuid.UUID, actor, reason string) (*Letter, error) {
	return s.transition(ctx, id, workflow.ReferralSent, actor, reason, func(l *Letter, at time.Time) {
		l.SentAt = &at
	})
}

// Accept records the target facility agreeing to take the patient.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, actor, reason string) (*Letter, error) {
	return s.transition(ctx, id, workflow.ReferralAccepted, actor, reason, func(l *Letter, at time.Time) {
		l.AcceptedAt = &at
	})
}

// Reject records the target facility declining. A reason is required.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor, reason string) (*Letter, error) {
	if reason == "" {
		return nil, fmt.Errorf("rejection reason is required")
	}
	return s.transition(ctx, id, workflow.ReferralRejected, actor, reason, func(l *Letter, at time.Time) {
		l.RejectedAt = &at
		l.RejectReason = &reason
	})
}

// MarkPatientTransferred records the patient's arrival at the target
// facility.
func (s *Service) MarkPatientTransferred(ctx context.Context, id uuid.UUID, actor, reason string) (*Letter, error) {
	return s.transition(ctx, id, workflow.ReferralPatientTransferred, actor, reason, func(l *Letter, at time.Time) {
		l.TransferredAt = &at
	})
}

// Complete closes the referral after care at the target facility ends.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor, reason string) (*Letter, error) {
	return s.transition(ctx, id, workflow.ReferralCompleted, actor, reason, func(l *Letter, at time.Time) {
		l.CompletedAt = &at
	})
}

// Cancel withdraws the letter. A reason is required.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor, reason string) (*Letter, error) {
	if reason == "" {
		return nil, fmt.Errorf("cancellation reason is required")
	}
	return s.transition(ctx, id, workflow.ReferralCancelled, actor, reason, func(l *Letter, at time.Time) {
		l.CancelledAt = &at
		l.CancelReason = &reason
	})
}

// transition runs one engine-validated status change. The write is
// guarded on the status the engine validated; a racing move on the same
// letter surfaces as db.ErrStaleRow instead of a silent overwrite.
func (s *Service) transition(ctx context.Context, id uuid.UUID, target workflow.State, actor, reason string, apply func(*Letter, time.Time)) (*Letter, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("referral letter not found: %w", err)
	}
	current, err := workflow.ParseState(workflow.KindReferral, l.Status)
	if err != nil {
		return nil, err
	}
	att, err := s.engine.Attempt(workflow.KindReferral, current, target, actor, reason)
	if err != nil {
		return nil, err
	}

	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		l.Status = string(att.To)
		l.UpdatedAt = att.At
		if apply != nil {
			apply(l, att.At)
		}
		if err := s.repo.UpdateFromStatus(ctx, l, string(att.From)); err != nil {
			return err
		}
		_, err := s.history.Record(ctx, l.ID, att, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}
