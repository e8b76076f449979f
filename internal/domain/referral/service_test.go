package referral

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
	mu      sync.Mutex
	letters map[uuid.UUID]*Letter
	// onGet, when set, runs after each read so tests can slip a
	// concurrent write in between a transition's read and its update.
	onGet func()
}

func newMemRepo() *memRepo {
	return &memRepo{letters: make(map[uuid.UUID]*Letter)}
}

func (m *memRepo) Create(_ context.Context, l *Letter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	cp := *l
	m.letters[l.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Letter, error) {
	m.mu.Lock()
	l, ok := m.letters[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("referral letter %s not found", id)
	}
	cp := *l
	m.mu.Unlock()
	if m.onGet != nil {
		m.onGet()
	}
	return &cp, nil
}

func (m *memRepo) Update(_ context.Context, l *Letter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.letters[l.ID]; !ok {
		return fmt.Errorf("referral letter %s not found", l.ID)
	}
	cp := *l
	m.letters[l.ID] = &cp
	return nil
}

func (m *memRepo) UpdateFromStatus(_ context.Context, l *Letter, from string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.letters[l.ID]
	if !ok || stored.Status != from {
		return db.ErrStaleRow
	}
	cp := *l
	m.letters[l.ID] = &cp
	return nil
}

func (m *memRepo) setStatus(id uuid.UUID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters[id].Status = status
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]*Letter, int, error) {
	var out []*Letter
	for _, l := range m.letters {
		out = append(out, l)
	}
	return out, len(out), nil
}

func (m *memRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Letter, int, error) {
	var out []*Letter
	for _, l := range m.letters {
		if l.PatientID == patientID {
			out = append(out, l)
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

func newTestService() (*Service, *memHistory) {
	clk := clock.NewStepping(time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC), time.Minute)
	hist := &memHistory{}
	svc := NewService(newMemRepo(), nil, workflow.NewEngine(clk), statushistory.NewRecorder(hist, clk), clk)
	return svc, hist
}

func draftLetter(t *testing.T, svc *Service) *Letter {
	t.Helper()
	l := &Letter{PatientID: uuid.New(), TargetFacility: "RSUP Fatmawati"}
	if err := svc.Create(context.Background(), l, "dr-5"); err != nil {
		t.Fatalf("create: %v", err)
	}
	return l
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.Create(ctx, &Letter{TargetFacility: "X"}, "dr-5"); err == nil {
		t.Error("expected error for missing patient")
	}
	if err := svc.Create(ctx, &Letter{PatientID: uuid.New()}, "dr-5"); err == nil {
		t.Error("expected error for missing target facility")
	}
}

func TestFullReferralPath(t *testing.T) {
	svc, hist := newTestService()
	ctx := context.Background()
	l := draftLetter(t, svc)

	steps := []struct {
		name string
		fn   func(context.Context, uuid.UUID, string, string) (*Letter, error)
		want string
	}{
		{"submit", svc.SubmitForSignature, "pending-signature"},
		{"sign", svc.Sign, "signed"},
		{"send", svc.Send, "sent"},
		{"accept", svc.Accept, "accepted"},
		{"transfer", svc.MarkPatientTransferred, "patient-transferred"},
		{"complete", svc.Complete, "completed"},
	}
	for _, step := range steps {
		out, err := step.fn(ctx, l.ID, "dr-5", "")
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if out.Status != step.want {
			t.Fatalf("%s: expected %s, got %s", step.name, step.want, out.Status)
		}
	}

	entries, _ := hist.ListByEntity(ctx, l.ID)
	if len(entries) != 7 {
		t.Fatalf("expected 7 history entries, got %d", len(entries))
	}
}

func TestSend_RequiresSignature(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	l := draftLetter(t, svc)

	_, err := svc.Send(ctx, l.ID, "clerk-1", "")
	var rej *workflow.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *workflow.Rejection, got %T", err)
	}
	if rej.Code != workflow.CodeTransitionNotAllowed {
		t.Errorf("expected transition-not-allowed, got %s", rej.Code)
	}
}

func TestAcceptedLetterCannotReturnToDraft(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	l := draftLetter(t, svc)

	for _, fn := range []func(context.Context, uuid.UUID, string, string) (*Letter, error){
		svc.SubmitForSignature, svc.Sign, svc.Send, svc.Accept,
	} {
		if _, err := fn(ctx, l.ID, "dr-5", ""); err != nil {
			t.Fatalf("setup transition: %v", err)
		}
	}

	// There is no operation back to draft; cancelling is the only way out
	// short of completing the transfer.
	out, err := svc.Cancel(ctx, l.ID, "dr-5", "patient declined")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.Status != "cancelled" {
		t.Errorf("expected cancelled, got %s", out.Status)
	}
}

func TestSignLosesToConcurrentCancel(t *testing.T) {
	clk := clock.NewStepping(time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC), time.Minute)
	repo := newMemRepo()
	hist := &memHistory{}
	svc := NewService(repo, nil, workflow.NewEngine(clk), statushistory.NewRecorder(hist, clk), clk)
	ctx := context.Background()

	l := &Letter{PatientID: uuid.New(), TargetFacility: "RSUP Fatmawati"}
	if err := svc.Create(ctx, l, "dr-5"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.SubmitForSignature(ctx, l.ID, "dr-5", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The letter is cancelled between the sign's read and its write. The
	// sign must fail instead of resurrecting the letter.
	fired := false
	repo.onGet = func() {
		if fired {
			return
		}
		fired = true
		repo.setStatus(l.ID, "cancelled")
	}

	_, err := svc.Sign(ctx, l.ID, "dr-5", "")
	if !errors.Is(err, db.ErrStaleRow) {
		t.Fatalf("expected db.ErrStaleRow, got %v", err)
	}

	repo.onGet = nil
	stored, _ := repo.GetByID(ctx, l.ID)
	if stored.Status != "cancelled" {
		t.Errorf("stale sign overwrote concurrent cancel: %s", stored.Status)
	}
}

func TestReject_OnlyFromSent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	l := draftLetter(t, svc)

	if _, err := svc.Reject(ctx, l.ID, "facility", "full"); err == nil {
		t.Error("expected rejection to fail from draft")
	}

	for _, fn := range []func(context.Context, uuid.UUID, string, string) (*Letter, error){
		svc.SubmitForSignature, svc.Sign, svc.Send,
	} {
		if _, err := fn(ctx, l.ID, "dr-5", ""); err != nil {
			t.Fatalf("setup transition: %v", err)
		}
	}
	out, err := svc.Reject(ctx, l.ID, "facility", "no capacity")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if out.Status != "rejected" || out.RejectReason == nil {
		t.Errorf("rejection not recorded: %+v", out)
	}
}
