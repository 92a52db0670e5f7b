package voice

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedRecognizer plays one list of events per recognition session. Once
// the script runs out, sessions stay open until their context ends.
type scriptedRecognizer struct {
	mu       sync.Mutex
	sessions [][]Event
	starts   int
	startErr error
}

func (r *scriptedRecognizer) Start(ctx context.Context) (<-chan Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}

	var script []Event
	if r.starts < len(r.sessions) {
		script = r.sessions[r.starts]
	}
	open := r.starts >= len(r.sessions)
	r.starts++

	events := make(chan Event)
	go func() {
		defer close(events)
		for _, ev := range script {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if open {
			<-ctx.Done()
		}
	}()
	return events, nil
}

func (r *scriptedRecognizer) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

type recorder struct {
	mu          sync.Mutex
	transcripts []string
	feedback    []string
	got         chan string
}

func newRecorder() *recorder {
	return &recorder{got: make(chan string, 16)}
}

func (r *recorder) handle(_ context.Context, transcript string) {
	r.mu.Lock()
	r.transcripts = append(r.transcripts, transcript)
	r.mu.Unlock()
	r.got <- transcript
}

func (r *recorder) notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, msg)
}

func (r *recorder) Feedback() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.feedback)
}

func final(text string) Event {
	return Event{Segments: []Segment{{Text: text, Final: true}}}
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected transcript %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func runListener(l *Listener) <-chan error {
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	return done
}

func TestListenerRestartsWhileListening(t *testing.T) {
	rec := newRecorder()
	r := &scriptedRecognizer{sessions: [][]Event{
		{final("Seven plus five")},
		{final("clear")},
	}}
	l := NewListener(r, rec.handle, WithRestartDelay(time.Millisecond), WithFeedback(rec.notify))

	done := runListener(l)
	waitFor(t, rec.got, "seven plus five")
	waitFor(t, rec.got, "clear")

	listening := func() int {
		n := 0
		for _, msg := range rec.Feedback() {
			if msg == MsgListening {
				n++
			}
		}
		return n
	}
	deadline := time.Now().Add(2 * time.Second)
	for listening() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.Starts() != 3 {
		t.Fatalf("expected a third recognition session, got %d", r.Starts())
	}

	l.Stop()
	if err := <-done; err != nil {
		t.Fatalf("expected nil after Stop, got %v", err)
	}
	if l.Listening() {
		t.Fatal("expected listener to be stopped")
	}

	fb := rec.Feedback()
	if fb[0] != MsgListening {
		t.Fatalf("expected first feedback %q, got %q", MsgListening, fb[0])
	}
	if !slices.Contains(fb, `Heard: "seven plus five"`) {
		t.Fatalf("expected heard feedback, got %v", fb)
	}
	if fb[len(fb)-1] != MsgStopped {
		t.Fatalf("expected last feedback %q, got %q", MsgStopped, fb[len(fb)-1])
	}
}

func TestListenerDispatchesPartialWithOperator(t *testing.T) {
	rec := newRecorder()
	r := &scriptedRecognizer{sessions: [][]Event{{
		{Segments: []Segment{{Text: "seven"}}},
		{Segments: []Segment{{Text: "seven"}, {Text: "times"}}},
	}}}
	l := NewListener(r, rec.handle, WithRestartDelay(time.Millisecond))

	done := runListener(l)
	waitFor(t, rec.got, "seven times")
	l.Stop()
	<-done

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !slices.Equal(rec.transcripts, []string{"seven times"}) {
		t.Fatalf("expected only the operator partial, got %v", rec.transcripts)
	}
}

func TestListenerStopsWhenPermissionDenied(t *testing.T) {
	rec := newRecorder()
	r := &scriptedRecognizer{sessions: [][]Event{{{Err: ErrNotAllowed}}}}
	l := NewListener(r, rec.handle, WithRestartDelay(time.Millisecond), WithFeedback(rec.notify))

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if r.Starts() != 1 {
		t.Fatalf("expected no restart, got %d starts", r.Starts())
	}

	want := []string{MsgListening, MsgNotAllowed, MsgStopped}
	if got := rec.Feedback(); !slices.Equal(got, want) {
		t.Fatalf("expected feedback %v, got %v", want, got)
	}
}

func TestListenerReportsRecognitionErrors(t *testing.T) {
	rec := newRecorder()
	r := &scriptedRecognizer{sessions: [][]Event{{
		{Err: ErrNoSpeech},
		{Err: errors.New("network")},
		final("done"),
	}}}
	l := NewListener(r, rec.handle, WithRestartDelay(time.Millisecond), WithFeedback(rec.notify))

	done := runListener(l)
	waitFor(t, rec.got, "done")
	l.Stop()
	<-done

	fb := rec.Feedback()
	if !slices.Contains(fb, MsgNoSpeech) {
		t.Fatalf("expected %q in %v", MsgNoSpeech, fb)
	}
	if !slices.Contains(fb, "Speech error: network") {
		t.Fatalf("expected speech error feedback in %v", fb)
	}
}

func TestListenerStartFailure(t *testing.T) {
	boom := errors.New("no microphone")
	l := NewListener(&scriptedRecognizer{startErr: boom}, func(context.Context, string) {})

	err := l.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestListenerRejectsConcurrentRun(t *testing.T) {
	r := &scriptedRecognizer{}
	l := NewListener(r, func(context.Context, string) {}, WithRestartDelay(time.Millisecond))

	done := runListener(l)
	deadline := time.Now().Add(2 * time.Second)
	for r.Starts() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := l.Run(context.Background()); !errors.Is(err, ErrAlreadyListening) {
		t.Fatalf("expected ErrAlreadyListening, got %v", err)
	}

	l.Stop()
	<-done
}

func TestListenerWithLineRecognizer(t *testing.T) {
	rec := newRecorder()
	input := strings.NewReader("Seven plus five\n\nwhat is 12 divided by 4\n")
	l := NewListener(NewLineRecognizer(input), rec.handle, WithRestartDelay(time.Millisecond))

	err := l.Run(context.Background())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}

	want := []string{"seven plus five", "what is 12 divided by 4"}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !slices.Equal(rec.transcripts, want) {
		t.Fatalf("expected %v, got %v", want, rec.transcripts)
	}
}

func TestAssemble(t *testing.T) {
	got, isFinal := Assemble([]Segment{{Text: " What is"}, {Text: "Two Plus Two ", Final: true}})
	if got != "what is two plus two" {
		t.Fatalf("unexpected transcript %q", got)
	}
	if !isFinal {
		t.Fatal("expected final")
	}
}
