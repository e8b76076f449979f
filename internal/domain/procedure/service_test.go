package procedure

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wardflow/wardflow/internal/domain/statushistory"
	"github.com/wardflow/wardflow/internal/platform/clock"
	"github.com/wardflow/wardflow/internal/platform/db"
	"github.com/wardflow/wardflow/internal/workflow"
)

type memRepo struct {
	mu   sync.Mutex
	acts map[uuid.UUID]*Activity
	// onGet, when set, runs after each read so tests can slip a
	// concurrent write in between a transition's read and its update.
	onGet func()
}

func newMemRepo() *memRepo {
	return &memRepo{acts: make(map[uuid.UUID]*Activity)}
}

func (m *memRepo) Create(_ context.Context, a *Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	cp := *a
	m.acts[a.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Activity, error) {
	m.mu.Lock()
	a, ok := m.acts[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("activity %s not found", id)
	}
	cp := *a
	m.mu.Unlock()
	if m.onGet != nil {
		m.onGet()
	}
	return &cp, nil
}

func (m *memRepo) Update(_ context.Context, a *Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.acts[a.ID]; !ok {
		return fmt.Errorf("activity %s not found", a.ID)
	}
	cp := *a
	m.acts[a.ID] = &cp
	return nil
}

func (m *memRepo) UpdateFromStatus(_ context.Context, a *Activity, from string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.acts[a.ID]
	if !ok || stored.Status != from {
		return db.ErrStaleRow
	}
	cp := *a
	m.acts[a.ID] = &cp
	return nil
}

func (m *memRepo) setStatus(id uuid.UUID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acts[id].Status = status
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]*Activity, int, error) {
	var out []*Activity
	for _, a := range m.acts {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *memRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Activity, int, error) {
	var out []*Activity
	for _, a := range m.acts {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

type memHistory struct {
	entries []*statushistory.Entry
}

func (m *memHistory) Append(_ context.Context, e *statushistory.Entry) error {
	e.ID = uuid.New()
	e.Seq = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *memHistory) ListByEntity(_ context.Context, entityID uuid.UUID) ([]*statushistory.Entry, error) {
	var out []*statushistory.Entry
	for _, e := range m.entries {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memHistory) Latest(_ context.Context, entityID uuid.UUID) (*statushistory.Entry, error) {
	var latest *statushistory.Entry
	for _, e := range m.entries {
		if e.EntityID == entityID {
			latest = e
		}
	}
	return latest, nil
}

func newTestService() (*Service, *memRepo, *memHistory) {
	clk := clock.NewStepping(time.Date(2024, 8, 5, 7, 0, 0, 0, time.UTC), time.Minute)
	repo := newMemRepo()
	hist := &memHistory{}
	svc := NewService(repo, nil, workflow.NewEngine(clk), statushistory.NewRecorder(hist, clk), clk)
	return svc, repo, hist
}

func pendingActivity(t *testing.T, svc *Service) *Activity {
	t.Helper()
	a := &Activity{PatientID: uuid.New(), Kind: KindImaging}
	if err := svc.Create(context.Background(), a, "dr-2"); err != nil {
		t.Fatalf("create: %v", err)
	}
	return a
}

func TestCreate_StartsPending(t *testing.T) {
	svc, _, hist := newTestService()

	a := pendingActivity(t, svc)
	if a.Status != "pending" {
		t.Errorf("expected pending, got %s", a.Status)
	}
	if !a.CanBeScheduled() {
		t.Error("pending activity should be schedulable")
	}
	if len(hist.entries) != 1 || !hist.entries[0].IsCreation() {
		t.Error("expected a single creation history entry")
	}
}

func TestCreate_RejectsUnknownKind(t *testing.T) {
	svc, _, _ := newTestService()

	a := &Activity{PatientID: uuid.New(), Kind: "dialysis"}
	if err := svc.Create(context.Background(), a, "dr-2"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestBegin_RequiresScheduled(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	a := pendingActivity(t, svc)

	_, err := svc.Begin(ctx, a.ID, "tech-1", "")
	var rej *workflow.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *workflow.Rejection, got %T", err)
	}
	if rej.Code != workflow.CodeTransitionNotAllowed {
		t.Errorf("expected transition-not-allowed, got %s", rej.Code)
	}
}

func TestBeginLosesToConcurrentCancel(t *testing.T) {
	svc, repo, hist := newTestService()
	ctx := context.Background()
	a := pendingActivity(t, svc)
	repo.setStatus(a.ID, string(workflow.ActivityScheduled))

	// The activity is cancelled between the begin's read and its write.
	fired := false
	repo.onGet = func() {
		if fired {
			return
		}
		fired = true
		repo.setStatus(a.ID, "cancelled")
	}

	_, err := svc.Begin(ctx, a.ID, "tech-1", "")
	if !errors.Is(err, db.ErrStaleRow) {
		t.Fatalf("expected db.ErrStaleRow, got %v", err)
	}

	repo.onGet = nil
	stored, _ := repo.GetByID(ctx, a.ID)
	if stored.Status != "cancelled" {
		t.Errorf("stale begin overwrote concurrent cancel: %s", stored.Status)
	}
	entries, _ := hist.ListByEntity(ctx, a.ID)
	if len(entries) != 1 {
		t.Errorf("losing transition wrote history: %d entries", len(entries))
	}
}

func TestScheduledActivityRunsToCompletion(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	a := pendingActivity(t, svc)

	// The booking coordinator normally performs this move.
	stored, _ := repo.GetByID(ctx, a.ID)
	stored.Status = string(workflow.ActivityScheduled)
	if err := repo.Update(ctx, stored); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	out, err := svc.Begin(ctx, a.ID, "tech-1", "")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if out.Status != "in-progress" || out.StartedAt == nil {
		t.Errorf("begin not recorded: %+v", out)
	}

	out, err = svc.Complete(ctx, a.ID, "tech-1", "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.Status != "completed" || out.CompletedAt == nil {
		t.Errorf("complete not recorded: %+v", out)
	}

	if _, err := svc.Cancel(ctx, a.ID, "tech-1", "too late"); err == nil {
		t.Error("expected cancel of completed activity to fail")
	}
}
