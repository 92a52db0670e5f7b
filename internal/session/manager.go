// Package session keeps one calculator per client and applies button and
// voice input to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voice-calculator/internal/calculator"
	"voice-calculator/internal/speech"
)

// Announcer speaks on behalf of a session.
type Announcer interface {
	Announce(ctx context.Context, channel, text string) speech.Utterance
	Cancel(channel string)
}

// Manager creates sessions and applies operations to them. Operations on the
// same session run one at a time.
type Manager struct {
	store     Store
	hub       *Hub
	announcer Announcer
	logger    *zap.Logger
	locks     keyedMutex
	now       func() time.Time
}

type ManagerOption func(*Manager)

func WithHub(h *Hub) ManagerOption {
	return func(m *Manager) { m.hub = h }
}

func WithAnnouncer(a Announcer) ManagerOption {
	return func(m *Manager) { m.announcer = a }
}

func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
		locks:  keyedMutex{locks: make(map[string]*refLock)},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Hub returns the update hub, or nil when updates are not published.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Create starts a cleared calculator under a new id.
func (m *Manager) Create(ctx context.Context) (Session, error) {
	s := Session{
		ID:        uuid.NewString(),
		State:     calculator.New(),
		UpdatedAt: m.now(),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	m.logger.Debug("session created", zap.String("session_id", s.ID))
	return s, nil
}

func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	return m.store.Get(ctx, id)
}

// Delete drops a session, silences it and disconnects its subscribers.
func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	if m.announcer != nil {
		m.announcer.Cancel(id)
	}
	if m.hub != nil {
		m.hub.CloseSession(id)
	}
	m.logger.Debug("session deleted", zap.String("session_id", id))
	return nil
}

// Apply runs op against session id and saves the result. A calculation is
// announced, and the resulting update is published to the hub.
func (m *Manager) Apply(ctx context.Context, id string, op Operation) (Update, Change, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Update{}, Change{}, err
		}
		return Update{}, Change{}, fmt.Errorf("load session %s: %w", id, err)
	}

	change := op.apply(&s.State)
	s.UpdatedAt = m.now()

	if err := m.store.Save(ctx, s); err != nil {
		return Update{}, Change{}, fmt.Errorf("save session %s: %w", id, err)
	}

	u := newUpdate(s, op.Name, change)
	if change.Calculated {
		u.Speech = speech.Sentence(change.Outcome)
		if m.announcer != nil {
			utt := m.announcer.Announce(ctx, id, u.Speech)
			u.Utterance = &utt
		}
	}
	if m.hub != nil {
		m.hub.Publish(u)
	}
	return u, change, nil
}

// Current returns the update describing the stored state of id.
func (m *Manager) Current(ctx context.Context, id string) (Update, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return Update{}, err
	}
	return newUpdate(s, "snapshot", Change{}), nil
}

func newUpdate(s Session, opName string, c Change) Update {
	snap := s.State.Snapshot()
	return Update{
		SessionID:  s.ID,
		Operation:  opName,
		Display:    snap.Display,
		Expression: snap.Expression,
		Action:     c.Action,
		Heard:      c.Heard,
	}
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
