// Package speech produces the spoken side of the calculator: result and
// error sentences and an announcer that hands them to a synthesizer.
package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"voice-calculator/internal/calculator"
)

// DivideByZeroSentence is spoken when a calculation divides by zero.
const DivideByZeroSentence = "Error: Cannot divide by zero"

// Utterance is one sentence with its voice settings.
type Utterance struct {
	Text   string  `json:"text"`
	Lang   string  `json:"lang"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

// Voice holds the settings applied to every utterance.
type Voice struct {
	Lang   string  `yaml:"lang"`
	Rate   float64 `yaml:"rate"`
	Pitch  float64 `yaml:"pitch"`
	Volume float64 `yaml:"volume"`
}

// DefaultVoice is a slightly slow US English voice.
func DefaultVoice() Voice {
	return Voice{Lang: "en-US", Rate: 0.9, Pitch: 1, Volume: 1}
}

// Utterance wraps text in the voice settings.
func (v Voice) Utterance(text string) Utterance {
	return Utterance{Text: text, Lang: v.Lang, Rate: v.Rate, Pitch: v.Pitch, Volume: v.Volume}
}

// Sentence returns what to say about a calculation outcome.
func Sentence(out calculator.Outcome) string {
	if errors.Is(out.Err, calculator.ErrDivideByZero) {
		return DivideByZeroSentence
	}
	return "The answer is " + out.Result
}

// Synthesizer speaks an utterance. Speak blocks until the utterance has been
// spoken or ctx is cancelled.
type Synthesizer interface {
	Speak(ctx context.Context, u Utterance) error
}

// Announcer speaks utterances in the background, one channel at a time. A new
// utterance on a channel cancels the one still being spoken there.
type Announcer struct {
	synth  Synthesizer
	voice  Voice
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

func NewAnnouncer(synth Synthesizer, voice Voice, logger *zap.Logger) *Announcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Announcer{
		synth:    synth,
		voice:    voice,
		logger:   logger,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Announce starts speaking text on channel and returns the utterance without
// waiting for it to finish.
func (a *Announcer) Announce(ctx context.Context, channel, text string) Utterance {
	u := a.voice.Utterance(text)

	speakCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	a.mu.Lock()
	if prev, ok := a.inflight[channel]; ok {
		prev()
	}
	a.inflight[channel] = cancel
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		defer a.release(speakCtx, channel, cancel)

		if err := a.synth.Speak(speakCtx, u); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("speech synthesis failed",
				zap.String("channel", channel),
				zap.String("text", u.Text),
				zap.Error(err),
			)
		}
	}()
	return u
}

// release forgets the cancel func of channel unless a newer utterance
// replaced it.
func (a *Announcer) release(ctx context.Context, channel string, cancel context.CancelFunc) {
	a.mu.Lock()
	if ctx.Err() == nil {
		delete(a.inflight, channel)
	}
	a.mu.Unlock()
	cancel()
}

// Cancel silences channel.
func (a *Announcer) Cancel(channel string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cancel, ok := a.inflight[channel]; ok {
		cancel()
		delete(a.inflight, channel)
	}
}

// Close cancels every utterance and waits for the synthesizer to return.
func (a *Announcer) Close() {
	a.mu.Lock()
	for ch, cancel := range a.inflight {
		cancel()
		delete(a.inflight, ch)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

// LogSynthesizer "speaks" by logging. With a positive WordDuration it also
// takes as long as a speaker at the utterance's rate would.
type LogSynthesizer struct {
	Logger       *zap.Logger
	WordDuration time.Duration
}

func (s LogSynthesizer) Speak(ctx context.Context, u Utterance) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("speaking",
		zap.String("text", u.Text),
		zap.String("lang", u.Lang),
		zap.Float64("rate", u.Rate),
	)

	if s.WordDuration <= 0 {
		return nil
	}

	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	d := time.Duration(float64(s.WordDuration) * float64(len(strings.Fields(u.Text))) / rate)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
