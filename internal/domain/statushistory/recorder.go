// Package statushistory keeps the append-only audit trail of status
// transitions. Every entity kind shares the same table; entries are never
// updated or deleted.
package statushistory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wardflow/wardflow/internal/platform/clock"
	"github.com/wardflow/wardflow/internal/workflow"
)

// Recorder writes history entries on behalf of the domain services. It
// stamps entries with its clock and enforces the one-creation-row rule.
type Recorder struct {
	repo  Repository
	clock clock.Clock
}

func NewRecorder(repo Repository, clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.System{}
	}
	return &Recorder{repo: repo, clock: clk}
}

// RecordCreation writes the initial entry for a freshly created entity.
// It refuses to write a second creation row for the same entity.
func (r *Recorder) RecordCreation(ctx context.Context, entityID uuid.UUID, kind workflow.Kind, initial workflow.State, actor string) (*Entry, error) {
	latest, err := r.repo.Latest(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		return nil, fmt.Errorf("entity %s already has history", entityID)
	}
	e := &Entry{
		EntityID:   entityID,
		EntityKind: string(kind),
		FromStatus: nil,
		ToStatus:   string(initial),
		ChangedBy:  actor,
		ChangedAt:  r.clock.Now(),
	}
	if err := r.repo.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Record writes the entry for an accepted transition. The attempt's own
// timestamp is used so the history row matches the entity's updated_at.
func (r *Recorder) Record(ctx context.Context, entityID uuid.UUID, att *workflow.Attempt, notes *string) (*Entry, error) {
	from := string(att.From)
	e := &Entry{
		EntityID:   entityID,
		EntityKind: string(att.Kind),
		FromStatus: &from,
		ToStatus:   string(att.To),
		ChangedBy:  att.Actor,
		Notes:      notes,
		ChangedAt:  att.At,
	}
	if att.Reason != "" {
		reason := att.Reason
		e.Reason = &reason
	}
	if err := r.repo.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// RecordNote appends an annotation entry that keeps the entity's current
// status, for audited changes that are not state moves, like a booking
// being moved to another slot. The entry's from and to status are equal.
func (r *Recorder) RecordNote(ctx context.Context, entityID uuid.UUID, kind workflow.Kind, status workflow.State, actor, notes string) (*Entry, error) {
	st := string(status)
	e := &Entry{
		EntityID:   entityID,
		EntityKind: string(kind),
		FromStatus: &st,
		ToStatus:   st,
		ChangedBy:  actor,
		Notes:      &notes,
		ChangedAt:  r.clock.Now(),
	}
	if err := r.repo.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns an entity's history in chronological order.
func (r *Recorder) List(ctx context.Context, entityID uuid.UUID) ([]*Entry, error) {
	return r.repo.ListByEntity(ctx, entityID)
}
