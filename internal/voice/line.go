package voice

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// LineRecognizer treats every line of a reader as a final transcript. One
// recognition session consumes the whole reader; later sessions report
// ErrExhausted.
type LineRecognizer struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	started bool
}

func NewLineRecognizer(r io.Reader) *LineRecognizer {
	return &LineRecognizer{scanner: bufio.NewScanner(r)}
}

func (r *LineRecognizer) Start(ctx context.Context) (<-chan Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil, ErrExhausted
	}
	r.started = true

	events := make(chan Event)
	go func() {
		defer close(events)
		for r.scanner.Scan() {
			ev := Event{Segments: []Segment{{Text: r.scanner.Text(), Final: true}}}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := r.scanner.Err(); err != nil {
			select {
			case events <- Event{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return events, nil
}
