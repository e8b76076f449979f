package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardflow/wardflow/internal/domain/facility"
	"github.com/wardflow/wardflow/internal/domain/procedure"
	"github.com/wardflow/wardflow/internal/domain/statushistory"
	"github.com/wardflow/wardflow/internal/platform/clock"
	"github.com/wardflow/wardflow/internal/platform/db"
	"github.com/wardflow/wardflow/internal/workflow"
)

// ResourceDirectory is the slice of the facility repository the
// coordinator needs.
type ResourceDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*facility.Resource, error)
}

// ActivityStore is the slice of the procedure repository the coordinator
// needs.
type ActivityStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*procedure.Activity, error)
	UpdateFromStatus(ctx context.Context, a *procedure.Activity, from string) error
}

// Coordinator serializes booking decisions per resource and per activity,
// so two requests for the same room cannot both pass the conflict check
// and two requests for the same activity cannot both book it. The check
// order is fixed: activity schedulable, resource usable, slot free, then
// commit. Commits are additionally guarded on the activity status, so a
// second coordinator instance working off another lock map cannot slip a
// duplicate booking through.
type Coordinator struct {
	bookings   Repository
	resources  ResourceDirectory
	activities ActivityStore
	calendar   *Calendar
	engine     *workflow.Engine
	history    *statushistory.Recorder
	pool       *pgxpool.Pool
	clock      clock.Clock

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewCoordinator(bookings Repository, resources ResourceDirectory, activities ActivityStore, calendar *Calendar, engine *workflow.Engine, history *statushistory.Recorder, pool *pgxpool.Pool, clk clock.Clock) *Coordinator {
	if clk == nil {
		clk = clock.System{}
	}
	if calendar == nil {
		calendar = NewCalendar(DefaultBufferMinutes)
	}
	return &Coordinator{
		bookings:   bookings,
		resources:  resources,
		activities: activities,
		calendar:   calendar,
		engine:     engine,
		history:    history,
		pool:       pool,
		clock:      clk,
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

func (co *Coordinator) keyedLock(id uuid.UUID) *sync.Mutex {
	co.mu.Lock()
	defer co.mu.Unlock()
	l, ok := co.locks[id]
	if !ok {
		l = &sync.Mutex{}
		co.locks[id] = l
	}
	return l
}

// lockKeys acquires the locks for the given resource and activity IDs in
// one sorted pass, so operations touching overlapping key sets cannot
// deadlock. Every multi-key acquisition must go through a single call.
func (co *Coordinator) lockKeys(ids ...uuid.UUID) func() {
	seen := make(map[uuid.UUID]bool)
	var unique []uuid.UUID
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	for i := 0; i < len(unique); i++ {
		for j := i + 1; j < len(unique); j++ {
			if strings.Compare(unique[j].String(), unique[i].String()) < 0 {
				unique[i], unique[j] = unique[j], unique[i]
			}
		}
	}
	var held []*sync.Mutex
	for _, id := range unique {
		l := co.keyedLock(id)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func validateSlot(start time.Time, end *time.Time) error {
	if start.IsZero() {
		return fmt.Errorf("scheduled_start is required")
	}
	if end != nil && !end.After(start) {
		return fmt.Errorf("scheduled_end must be after scheduled_start")
	}
	return nil
}

// Schedule books a pending activity onto a resource. On success the
// activity moves to scheduled, the booking row is created, and the status
// history gains an entry, all in one transaction.
func (co *Coordinator) Schedule(ctx context.Context, activityID, resourceID uuid.UUID, start time.Time, end *time.Time, actor string) (*Booking, error) {
	if err := validateSlot(start, end); err != nil {
		return nil, err
	}

	// Locking the activity alongside the resource keeps two schedule
	// attempts for the same activity on different resources from both
	// reading it as pending.
	unlock := co.lockKeys(resourceID, activityID)
	defer unlock()

	a, err := co.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("activity not found: %w", err)
	}
	current, err := workflow.ParseState(workflow.KindActivity, a.Status)
	if err != nil {
		return nil, err
	}
	att, err := co.engine.Attempt(workflow.KindActivity, current, workflow.ActivityScheduled, actor, "")
	if err != nil {
		return nil, err
	}

	res, err := co.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("resource not found: %w", err)
	}
	if !res.Operational {
		return nil, &ResourceUnusableError{ResourceID: resourceID, Reason: ReasonNotOperational}
	}
	if !res.Available {
		return nil, &ResourceUnusableError{ResourceID: resourceID, Reason: ReasonUnavailable}
	}

	existing, err := co.bookings.ListActiveByResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if conflicts := co.calendar.ConflictsFor(existing, start, end, res.MaxBookingsPerDay); len(conflicts) > 0 {
		return nil, &ConflictError{ResourceID: resourceID, Conflicts: conflicts}
	}

	b := &Booking{
		ResourceID:     resourceID,
		ActivityID:     activityID,
		ScheduledStart: start,
		ScheduledEnd:   end,
		Active:         true,
		CreatedAt:      att.At,
	}
	err = db.WithTx(ctx, co.pool, func(ctx context.Context) error {
		// The guarded activity write goes first: if the status moved
		// since the read, the transaction fails before any booking row
		// is created.
		a.Status = string(att.To)
		a.ResourceID = &resourceID
		a.ScheduledStart = &start
		a.ScheduledEnd = end
		a.UpdatedAt = att.At
		if err := co.activities.UpdateFromStatus(ctx, a, string(att.From)); err != nil {
			return err
		}
		if err := co.bookings.Create(ctx, b); err != nil {
			return err
		}
		_, err := co.history.Record(ctx, a.ID, att, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Reschedule moves a scheduled activity's booking to a new slot, possibly
// on a different resource. The activity stays scheduled; the booking rows
// and the reschedule counter change, and the move is noted in the status
// history so the audit trail shows who moved the slot and where.
func (co *Coordinator) Reschedule(ctx context.Context, activityID, resourceID uuid.UUID, start time.Time, end *time.Time, actor string) (*Booking, error) {
	if err := validateSlot(start, end); err != nil {
		return nil, err
	}

	// The old booking's resource needs no lock: deactivating it only
	// frees capacity there, which cannot invalidate a concurrent check.
	unlock := co.lockKeys(resourceID, activityID)
	defer unlock()

	a, err := co.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("activity not found: %w", err)
	}
	if a.Status != string(workflow.ActivityScheduled) {
		return nil, fmt.Errorf("only scheduled activities can be rescheduled, activity is %s", a.Status)
	}
	old, err := co.bookings.GetActiveByActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, ErrNotFound
	}

	res, err := co.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("resource not found: %w", err)
	}
	if !res.Operational {
		return nil, &ResourceUnusableError{ResourceID: resourceID, Reason: ReasonNotOperational}
	}
	if !res.Available {
		return nil, &ResourceUnusableError{ResourceID: resourceID, Reason: ReasonUnavailable}
	}

	existing, err := co.bookings.ListActiveByResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	// The booking being moved must not block its own new slot.
	var others []*Booking
	for _, b := range existing {
		if b.ID != old.ID {
			others = append(others, b)
		}
	}
	if conflicts := co.calendar.ConflictsFor(others, start, end, res.MaxBookingsPerDay); len(conflicts) > 0 {
		return nil, &ConflictError{ResourceID: resourceID, Conflicts: conflicts}
	}

	now := co.clock.Now()
	b := &Booking{
		ResourceID:     resourceID,
		ActivityID:     activityID,
		ScheduledStart: start,
		ScheduledEnd:   end,
		Active:         true,
		CreatedAt:      now,
	}
	err = db.WithTx(ctx, co.pool, func(ctx context.Context) error {
		a.ResourceID = &resourceID
		a.ScheduledStart = &start
		a.ScheduledEnd = end
		a.RescheduleCount++
		a.UpdatedAt = now
		if err := co.activities.UpdateFromStatus(ctx, a, string(workflow.ActivityScheduled)); err != nil {
			return err
		}
		if err := co.bookings.Deactivate(ctx, old.ID, now); err != nil {
			return err
		}
		if err := co.bookings.Create(ctx, b); err != nil {
			return err
		}
		note := fmt.Sprintf("booking moved to resource %s, slot starting %s", resourceID, start.Format(time.RFC3339))
		_, err := co.history.RecordNote(ctx, a.ID, workflow.KindActivity, workflow.ActivityScheduled, actor, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Release frees a scheduled activity's booking and returns the activity
// to pending so it can be scheduled again later.
func (co *Coordinator) Release(ctx context.Context, activityID uuid.UUID, actor, reason string) (*procedure.Activity, error) {
	// Only the activity needs a lock: deactivating its booking frees
	// capacity on the resource, which cannot invalidate a concurrent
	// conflict check there.
	unlock := co.lockKeys(activityID)
	defer unlock()

	a, err := co.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("activity not found: %w", err)
	}
	current, err := workflow.ParseState(workflow.KindActivity, a.Status)
	if err != nil {
		return nil, err
	}
	att, err := co.engine.Attempt(workflow.KindActivity, current, workflow.ActivityPending, actor, reason)
	if err != nil {
		return nil, err
	}
	b, err := co.bookings.GetActiveByActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}

	err = db.WithTx(ctx, co.pool, func(ctx context.Context) error {
		a.Status = string(att.To)
		a.ResourceID = nil
		a.ScheduledStart = nil
		a.ScheduledEnd = nil
		a.UpdatedAt = att.At
		if err := co.activities.UpdateFromStatus(ctx, a, string(att.From)); err != nil {
			return err
		}
		if err := co.bookings.Deactivate(ctx, b.ID, att.At); err != nil {
			return err
		}
		_, err := co.history.Record(ctx, a.ID, att, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByResource returns a resource's bookings, newest first.
func (co *Coordinator) ListByResource(ctx context.Context, resourceID uuid.UUID, limit, offset int) ([]*Booking, int, error) {
	return co.bookings.ListByResource(ctx, resourceID, limit, offset)
}
