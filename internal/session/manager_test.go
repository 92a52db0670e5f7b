package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"voice-calculator/internal/calculator"
	"voice-calculator/internal/speech"
	"voice-calculator/internal/voice"
)

type fakeAnnouncer struct {
	mu        sync.Mutex
	said      []string
	cancelled []string
}

func (a *fakeAnnouncer) Announce(_ context.Context, channel, text string) speech.Utterance {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.said = append(a.said, channel+": "+text)
	return speech.DefaultVoice().Utterance(text)
}

func (a *fakeAnnouncer) Cancel(channel string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelled = append(a.cancelled, channel)
}

func mustOp(t *testing.T) func(Operation, error) Operation {
	return func(op Operation, err error) Operation {
		t.Helper()
		if err != nil {
			t.Fatalf("building operation: %v", err)
		}
		return op
	}
}

func apply(t *testing.T, m *Manager, id string, op Operation) Update {
	t.Helper()
	u, _, err := m.Apply(context.Background(), id, op)
	if err != nil {
		t.Fatalf("applying %s: %v", op.Name, err)
	}
	return u
}

func TestManagerButtonFlow(t *testing.T) {
	ann := &fakeAnnouncer{}
	m := NewManager(NewMemoryStore(0), WithAnnouncer(ann))
	must := mustOp(t)

	s, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	apply(t, m, s.ID, must(Digit("1")))
	apply(t, m, s.ID, must(Digit("2")))
	u := apply(t, m, s.ID, must(SetOperator("÷")))
	if u.Expression != "12 ÷" {
		t.Fatalf("expected expression %q, got %q", "12 ÷", u.Expression)
	}
	apply(t, m, s.ID, must(Digit("4")))

	u = apply(t, m, s.ID, Calculate())
	if u.Display != "3" || u.Expression != "" {
		t.Fatalf("expected 3 with empty expression, got %+v", u)
	}
	if u.Speech != "The answer is 3" || u.Utterance == nil || u.Utterance.Rate != 0.9 {
		t.Fatalf("expected spoken answer, got %+v", u)
	}
	if len(ann.said) != 1 || ann.said[0] != s.ID+": The answer is 3" {
		t.Fatalf("unexpected announcements %v", ann.said)
	}

	stored, err := m.Get(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored.State.ResetNext || stored.State.Current != "3" {
		t.Fatalf("expected saved state, got %+v", stored.State)
	}
}

func TestManagerDivideByZeroIsSpoken(t *testing.T) {
	m := NewManager(NewMemoryStore(0))
	must := mustOp(t)
	s, _ := m.Create(context.Background())

	apply(t, m, s.ID, must(Digit("5")))
	apply(t, m, s.ID, must(SetOperator("/")))
	apply(t, m, s.ID, must(Digit("0")))
	u, change, err := m.Apply(context.Background(), s.ID, Calculate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if u.Display != calculator.ErrorDisplay {
		t.Fatalf("expected Error display, got %q", u.Display)
	}
	if u.Speech != speech.DivideByZeroSentence {
		t.Fatalf("expected divide by zero sentence, got %q", u.Speech)
	}
	if !errors.Is(change.Outcome.Err, calculator.ErrDivideByZero) {
		t.Fatalf("expected ErrDivideByZero outcome, got %v", change.Outcome.Err)
	}
}

func TestManagerVoice(t *testing.T) {
	m := NewManager(NewMemoryStore(0))
	d := voice.NewDispatcher()
	s, _ := m.Create(context.Background())

	u := apply(t, m, s.ID, Voice(d, "seven", false))
	if u.Action != string(voice.ActionNone) || u.Display != "0" {
		t.Fatalf("expected partial without operator to be ignored, got %+v", u)
	}

	u = apply(t, m, s.ID, Voice(d, "Seven plus five", true))
	if u.Display != "12" || u.Action != string(voice.ActionExpression) || u.Heard != "seven plus five" {
		t.Fatalf("unexpected update %+v", u)
	}

	u = apply(t, m, s.ID, Voice(d, "times", false))
	if u.Expression != "12 ×" {
		t.Fatalf("expected early operator dispatch, got %+v", u)
	}

	u = apply(t, m, s.ID, Voice(d, "clear", true))
	if u.Display != "0" || u.Expression != "" || u.Action != string(voice.ActionClear) {
		t.Fatalf("expected cleared calculator, got %+v", u)
	}
}

func TestManagerPublishesUpdates(t *testing.T) {
	hub := NewHub(4)
	m := NewManager(NewMemoryStore(0), WithHub(hub))
	s, _ := m.Create(context.Background())

	sub := hub.Subscribe(s.ID)
	defer sub.Close()

	apply(t, m, s.ID, Decimal())
	if got := receive(t, sub); got.Display != "0." || got.Operation != "decimal" {
		t.Fatalf("unexpected update %+v", got)
	}
}

func TestManagerUnknownSession(t *testing.T) {
	m := NewManager(NewMemoryStore(0))

	if _, _, err := m.Apply(context.Background(), "missing", ClearAll()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManagerDeleteSilencesAndDisconnects(t *testing.T) {
	ann := &fakeAnnouncer{}
	hub := NewHub(1)
	m := NewManager(NewMemoryStore(0), WithAnnouncer(ann), WithHub(hub))
	s, _ := m.Create(context.Background())
	sub := hub.Subscribe(s.ID)

	if err := m.Delete(context.Background(), s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ann.cancelled) != 1 || ann.cancelled[0] != s.ID {
		t.Fatalf("expected speech to be cancelled, got %v", ann.cancelled)
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("expected subscription to be closed")
	}
}

func TestManagerSerializesPerSession(t *testing.T) {
	m := NewManager(NewMemoryStore(0))
	s, _ := m.Create(context.Background())
	op := mustOp(t)(Digit("1"))

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := m.Apply(context.Background(), s.ID, op); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := m.Get(context.Background(), s.ID)
	if len(got.State.Current) != n {
		t.Fatalf("expected %d digits, got %q", n, got.State.Current)
	}
	if len(m.locks.locks) != 0 {
		t.Fatalf("expected locks to be released, got %d", len(m.locks.locks))
	}
}

func TestOperationValidation(t *testing.T) {
	if _, err := Digit("12"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := Digit("x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := SetOperator("^"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := (Input{Type: "launch"}).Operation(nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
