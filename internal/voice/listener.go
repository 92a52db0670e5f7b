package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Recognizer errors delivered in an Event.
var (
	ErrNoSpeech   = errors.New("no-speech")
	ErrNotAllowed = errors.New("not-allowed")
)

var (
	// ErrExhausted is returned by Start when a recognizer has no more input.
	ErrExhausted = errors.New("recognizer exhausted")

	ErrAlreadyListening = errors.New("listener already running")
)

// Feedback messages shown to the speaker.
const (
	MsgListening  = "Listening... Speak your command"
	MsgNoSpeech   = "No speech detected. Try again."
	MsgNotAllowed = "Microphone permission denied."
	MsgStopped    = "Voice recognition stopped"
)

const defaultRestartDelay = 100 * time.Millisecond

// Segment is one recognized phrase.
type Segment struct {
	Text  string
	Final bool
}

// Event is a recognizer result (all segments of the session so far) or an
// error.
type Event struct {
	Segments []Segment
	Err      error
}

// Recognizer is a speech-to-text source. Start begins a recognition session;
// the session ends when the returned channel is closed. Implementations must
// close the channel once ctx is done.
type Recognizer interface {
	Start(ctx context.Context) (<-chan Event, error)
}

// TranscriptHandler receives transcripts ready for dispatch. Handlers run to
// completion before the next event is read.
type TranscriptHandler func(ctx context.Context, transcript string)

// Listener pulls events from a Recognizer and restarts it after every
// session end for as long as it is listening.
type Listener struct {
	recognizer   Recognizer
	handle       TranscriptHandler
	feedback     func(string)
	restartDelay time.Duration
	logger       *zap.Logger

	mu        sync.Mutex
	running   bool
	listening bool
	cancel    context.CancelFunc
	stopped   chan struct{}
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithRestartDelay sets the pause between a session end and the restart.
func WithRestartDelay(d time.Duration) ListenerOption {
	return func(l *Listener) {
		l.restartDelay = d
	}
}

// WithFeedback receives the status messages meant for the speaker.
func WithFeedback(fn func(string)) ListenerOption {
	return func(l *Listener) {
		l.feedback = fn
	}
}

// WithLogger sets the listener's logger.
func WithLogger(logger *zap.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

func NewListener(r Recognizer, handle TranscriptHandler, opts ...ListenerOption) *Listener {
	l := &Listener{
		recognizer:   r,
		handle:       handle,
		feedback:     func(string) {},
		restartDelay: defaultRestartDelay,
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Listening reports whether the listener will restart the recognizer.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening
}

// Run listens until Stop is called, ctx is done, or the recognizer fails to
// start. It returns nil after Stop.
func (l *Listener) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyListening
	}
	l.running = true
	l.listening = true
	l.stopped = make(chan struct{})
	stopped := l.stopped
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.listening = false
		l.cancel = nil
		l.mu.Unlock()
	}()

	for session := 1; ; session++ {
		sessionCtx, cancel := context.WithCancel(ctx)
		if !l.begin(cancel) {
			cancel()
			return nil
		}

		events, err := l.recognizer.Start(sessionCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("start recognizer: %w", err)
		}

		l.logger.Debug("recognition started", zap.Int("session", session))
		l.feedback(MsgListening)

		l.consume(sessionCtx, events)
		cancel()

		if err := ctx.Err(); err != nil {
			return err
		}
		if !l.Listening() {
			return nil
		}

		l.logger.Debug("recognition ended, restarting",
			zap.Int("session", session),
			zap.Duration("delay", l.restartDelay),
		)

		select {
		case <-time.After(l.restartDelay):
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// begin records the cancel func of a new session unless Stop won the race.
func (l *Listener) begin(cancel context.CancelFunc) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.listening {
		return false
	}
	l.cancel = cancel
	return true
}

// Stop ends the current recognition session and disables restarts.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.listening {
		l.mu.Unlock()
		return
	}
	l.listening = false
	if l.cancel != nil {
		l.cancel()
	}
	close(l.stopped)
	l.mu.Unlock()

	l.feedback(MsgStopped)
}

func (l *Listener) consume(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			l.handleEvent(ctx, ev)
		}
	}
}

func (l *Listener) handleEvent(ctx context.Context, ev Event) {
	if ev.Err != nil {
		switch {
		case errors.Is(ev.Err, ErrNoSpeech):
			l.feedback(MsgNoSpeech)
		case errors.Is(ev.Err, ErrNotAllowed):
			l.feedback(MsgNotAllowed)
			l.Stop()
		default:
			l.logger.Warn("speech recognition error", zap.Error(ev.Err))
			l.feedback(fmt.Sprintf("Speech error: %v", ev.Err))
		}
		return
	}

	transcript, final := Assemble(ev.Segments)
	if !ShouldDispatch(transcript, final) {
		return
	}

	l.feedback(`Heard: "` + transcript + `"`)
	l.handle(ctx, transcript)
}

// Assemble joins segment texts into one lowercase transcript and reports
// whether any segment is final.
func Assemble(segments []Segment) (string, bool) {
	var (
		b     strings.Builder
		final bool
	)
	for _, s := range segments {
		b.WriteString(s.Text)
		b.WriteByte(' ')
		if s.Final {
			final = true
		}
	}
	return normalize(b.String()), final
}
