package encounter

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
	encs map[uuid.UUID]*Encounter
	// onGet, when set, runs after each read so tests can hold several
	// racing transitions at the point where they have all read the row.
	onGet func()
}

func newMemRepo() *memRepo {
	return &memRepo{encs: make(map[uuid.UUID]*Encounter)}
}

func (m *memRepo) Create(_ context.Context, enc *Encounter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	enc.ID = uuid.New()
	cp := *enc
	m.encs[enc.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Encounter, error) {
	m.mu.Lock()
	enc, ok := m.encs[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("encounter %s not found", id)
	}
	cp := *enc
	m.mu.Unlock()
	if m.onGet != nil {
		m.onGet()
	}
	return &cp, nil
}

func (m *memRepo) Update(_ context.Context, enc *Encounter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.encs[enc.ID]; !ok {
		return fmt.Errorf("encounter %s not found", enc.ID)
	}
	cp := *enc
	m.encs[enc.ID] = &cp
	return nil
}

func (m *memRepo) UpdateFromStatus(_ context.Context, enc *Encounter, from string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.encs[enc.ID]
	if !ok || stored.Status != from {
		return db.ErrStaleRow
	}
	cp := *enc
	m.encs[enc.ID] = &cp
	return nil
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]*Encounter, int, error) {
	var out []*Encounter
	for _, enc := range m.encs {
		out = append(out, enc)
	}
	return out, len(out), nil
}

func (m *memRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	var out []*Encounter
	for _, enc := range m.encs {
		if enc.PatientID == patientID {
			out = append(out, enc)
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

func newTestService(clk clock.Clock) (*Service, *memRepo, *memHistory) {
	repo := newMemRepo()
	hist := &memHistory{}
	svc := NewService(repo, nil, workflow.NewEngine(clk), statushistory.NewRecorder(hist, clk), clk)
	return svc, repo, hist
}

func steppingClock() *clock.Stepping {
	return clock.NewStepping(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), time.Hour)
}

func TestCreate_StartsPlanned(t *testing.T) {
	svc, _, hist := newTestService(steppingClock())
	ctx := context.Background()

	enc := &Encounter{PatientID: uuid.New()}
	if err := svc.Create(ctx, enc, "clerk-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if enc.Status != "planned" {
		t.Errorf("expected status planned, got %s", enc.Status)
	}
	if enc.PlannedAt.IsZero() {
		t.Error("expected planned_at defaulted from clock")
	}
	if len(hist.entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(hist.entries))
	}
	if !hist.entries[0].IsCreation() {
		t.Error("first history entry must be a creation row")
	}
}

func TestCreate_RejectsNonInitialStatus(t *testing.T) {
	svc, _, _ := newTestService(steppingClock())

	enc := &Encounter{PatientID: uuid.New(), Status: "arrived"}
	if err := svc.Create(context.Background(), enc, "clerk-1"); err == nil {
		t.Error("expected error for non-initial status")
	}
}

func TestCreate_RequiresPatient(t *testing.T) {
	svc, _, _ := newTestService(steppingClock())

	if err := svc.Create(context.Background(), &Encounter{}, "clerk-1"); err == nil {
		t.Error("expected error for missing patient")
	}
}

func TestRejectedTransitionDoesNotMutate(t *testing.T) {
	svc, repo, hist := newTestService(steppingClock())
	ctx := context.Background()

	enc := &Encounter{PatientID: uuid.New()}
	if err := svc.Create(ctx, enc, "clerk-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := svc.Finish(ctx, enc.ID, "dr-1", "")
	var rej *workflow.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *workflow.Rejection, got %T: %v", err, err)
	}
	if rej.Code != workflow.CodeTransitionNotAllowed {
		t.Errorf("expected transition-not-allowed, got %s", rej.Code)
	}
	want := map[workflow.State]bool{workflow.EncounterArrived: true, workflow.EncounterCancelled: true}
	for _, a := range rej.Allowed {
		if !want[a] {
			t.Errorf("unexpected allowed target %s", a)
		}
	}

	stored, _ := repo.GetByID(ctx, enc.ID)
	if stored.Status != "planned" {
		t.Errorf("rejected transition changed status to %s", stored.Status)
	}
	if len(hist.entries) != 1 {
		t.Errorf("rejected transition wrote history: %d entries", len(hist.entries))
	}
}

func TestFullLifecycle(t *testing.T) {
	svc, _, hist := newTestService(steppingClock())
	ctx := context.Background()

	enc := &Encounter{PatientID: uuid.New()}
	if err := svc.Create(ctx, enc, "clerk-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	steps := []struct {
		name string
		fn   func(context.Context, uuid.UUID, string, string) (*Encounter, error)
		want string
	}{
		{"arrive", svc.Arrive, "arrived"},
		{"triage", svc.Triage, "triaged"},
		{"begin", svc.Begin, "in-progress"},
		{"finish", svc.Finish, "finished"},
	}
	var last *Encounter
	for _, step := range steps {
		out, err := step.fn(ctx, enc.ID, "nurse-1", "")
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if out.Status != step.want {
			t.Fatalf("%s: expected status %s, got %s", step.name, step.want, out.Status)
		}
		last = out
	}

	if last.ArrivedAt == nil || last.TriagedAt == nil || last.StartedAt == nil || last.FinishedAt == nil {
		t.Error("expected every milestone timestamp set")
	}
	if last.LengthHours == nil || *last.LengthHours < 0 {
		t.Error("expected non-negative length of stay in hours")
	}
	if last.LengthDays == nil || *last.LengthDays != *last.LengthHours/24 {
		t.Error("expected days derived from hours")
	}

	entries, _ := hist.ListByEntity(ctx, enc.ID)
	if len(entries) != 5 {
		t.Fatalf("expected 5 history entries, got %d", len(entries))
	}
	if !entries[0].IsCreation() {
		t.Error("first entry must be the creation row")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].IsCreation() {
			t.Errorf("entry %d is an unexpected creation row", i)
		}
		if *entries[i].FromStatus != entries[i-1].ToStatus {
			t.Errorf("entry %d does not chain from previous status", i)
		}
	}
}

func TestFinish_ComputesLengthOfStayFromArrival(t *testing.T) {
	fixed := clock.Fixed{T: time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)}
	svc, repo, _ := newTestService(fixed)
	ctx := context.Background()

	arrived := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	enc := &Encounter{PatientID: uuid.New(), Status: "in-progress", PlannedAt: arrived, ArrivedAt: &arrived}
	if err := repo.Create(ctx, enc); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := svc.Finish(ctx, enc.ID, "dr-1", "")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	// 3 days 2.5 hours truncates to 74 hours, 3 days.
	if *out.LengthHours != 74 {
		t.Errorf("expected 74 hours, got %d", *out.LengthHours)
	}
	if *out.LengthDays != 3 {
		t.Errorf("expected 3 days, got %d", *out.LengthDays)
	}
}

func TestConcurrentTransitions_OnlyOneWins(t *testing.T) {
	svc, repo, hist := newTestService(steppingClock())
	ctx := context.Background()

	enc := &Encounter{PatientID: uuid.New()}
	if err := svc.Create(ctx, enc, "clerk-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Hold both transitions until each has read the planned encounter, so
	// both pass engine validation before either writes.
	var gate sync.WaitGroup
	gate.Add(2)
	repo.onGet = func() {
		gate.Done()
		gate.Wait()
	}

	errs := make(chan error, 2)
	go func() {
		_, err := svc.Arrive(ctx, enc.ID, "nurse-1", "")
		errs <- err
	}()
	go func() {
		_, err := svc.Cancel(ctx, enc.ID, "clerk-1", "patient no-show")
		errs <- err
	}()

	var won, lost int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			won++
		case errors.Is(err, db.ErrStaleRow):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("expected exactly one winner and one stale loser, got %d/%d", won, lost)
	}

	repo.onGet = nil
	stored, err := repo.GetByID(ctx, enc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != "arrived" && stored.Status != "cancelled" {
		t.Fatalf("unexpected final status %s", stored.Status)
	}

	// Creation row plus the single winning transition; the chain must not
	// contain a second move claiming to come from planned.
	entries, _ := hist.ListByEntity(ctx, enc.ID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if *entries[1].FromStatus != "planned" || entries[1].ToStatus != stored.Status {
		t.Errorf("history entry does not match stored row: %s -> %s vs %s",
			*entries[1].FromStatus, entries[1].ToStatus, stored.Status)
	}
}

func TestCancel_RequiresReason(t *testing.T) {
	svc, _, _ := newTestService(steppingClock())
	ctx := context.Background()

	enc := &Encounter{PatientID: uuid.New()}
	if err := svc.Create(ctx, enc, "clerk-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Cancel(ctx, enc.ID, "clerk-1", ""); err == nil {
		t.Error("expected error for missing cancel reason")
	}
	out, err := svc.Cancel(ctx, enc.ID, "clerk-1", "patient no-show")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.Status != "cancelled" || out.CancelReason == nil || *out.CancelReason != "patient no-show" {
		t.Errorf("cancel not recorded: %+v", out)
	}
}
