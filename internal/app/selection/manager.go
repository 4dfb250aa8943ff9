package selection

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// DetachFunc removes the UI of a flow that ended without a resolution.
type DetachFunc[T any] func(f *Flow[T], outcome Outcome)

// Manager tracks open flows of one kind.
// At most one pending flow exists per scope; opening another supersedes it.
type Manager[T any] struct {
	mu       sync.RWMutex
	flows    map[string]*Flow[T]
	byScope  map[string]*Flow[T]
	resolved map[string]tombstone

	kind   string
	ttl    time.Duration
	detach DetachFunc[T]
	now    func() time.Time
}

// tombstone remembers a resolved flow until its original deadline so late
// clicks are told a choice was made.
type tombstone struct {
	ownerID string
	until   time.Time
}

// NewManager creates a manager whose flows expire after ttl.
func NewManager[T any](kind string, ttl time.Duration, detach DetachFunc[T]) *Manager[T] {
	return &Manager[T]{
		flows:    make(map[string]*Flow[T]),
		byScope:  make(map[string]*Flow[T]),
		resolved: make(map[string]tombstone),
		kind:     kind,
		ttl:      ttl,
		detach:   detach,
		now:      time.Now,
	}
}

// Kind returns the flow kind handled by this manager.
func (m *Manager[T]) Kind() string {
	return m.kind
}

// TTL returns the flow lifetime.
func (m *Manager[T]) TTL() time.Duration {
	return m.ttl
}

// Open starts a flow for ownerID over options. scope identifies the
// (guild, owner) pair a flow is exclusive to.
func (m *Manager[T]) Open(scope, ownerID string, options []T) (*Flow[T], error) {
	if len(options) == 0 {
		return nil, errors.Wrapf(ErrInvalidOption, "no options for %s selection", m.kind)
	}

	f := &Flow[T]{
		id:      uuid.New().String(),
		scope:   scope,
		ownerID: ownerID,
		options: append([]T(nil), options...),
		expiry:  m.now().Add(m.ttl),
	}

	m.mu.Lock()
	m.sweepLocked()
	previous := m.byScope[scope]
	m.flows[f.id] = f
	m.byScope[scope] = f
	f.timer = time.AfterFunc(m.ttl, func() { m.expire(f) })
	m.mu.Unlock()

	if previous != nil && previous.finish(OutcomeSuperseded) {
		previous.timer.Stop()
		m.forget(previous)
		m.runDetach(previous, OutcomeSuperseded)
	}

	zlog.Debug().Msgf("selection opened: kind=%s flow=%s owner=%s options=%d", m.kind, f.id, ownerID, len(options))
	return f, nil
}

// Resolve picks option index of flow id on behalf of userID.
// Exactly one successful call per flow returns the option; the caller then
// applies the side effect.
func (m *Manager[T]) Resolve(id, userID string, index int) (T, *Flow[T], error) {
	var zero T

	f, err := m.lookup(id, userID)
	if err != nil {
		return zero, f, err
	}
	if index < 0 || index >= len(f.options) {
		return zero, f, errors.Wrapf(ErrInvalidOption, "flow=%s index=%d", id, index)
	}

	if m.now().After(f.expiry) {
		m.expire(f)
		return zero, f, f.closedErr()
	}

	if !f.finish(OutcomeResolved) {
		return zero, f, f.closedErr()
	}

	f.timer.Stop()
	m.mu.Lock()
	m.resolved[f.id] = tombstone{ownerID: f.ownerID, until: f.expiry}
	m.forgetLocked(f)
	m.mu.Unlock()

	zlog.Debug().Msgf("selection resolved: kind=%s flow=%s index=%d", m.kind, id, index)
	return f.options[index], f, nil
}

// Authorize checks that flow id is open and owned by userID.
func (m *Manager[T]) Authorize(id, userID string) error {
	_, err := m.lookup(id, userID)
	return err
}

func (m *Manager[T]) lookup(id, userID string) (*Flow[T], error) {
	m.mu.RLock()
	f, ok := m.flows[id]
	ts, done := m.resolved[id]
	m.mu.RUnlock()

	switch {
	case ok && userID != f.ownerID:
		return f, errors.Wrapf(ErrNotFlowOwner, "flow=%s user=%s", id, userID)
	case ok:
		return f, nil
	case done && userID != ts.ownerID:
		return nil, errors.Wrapf(ErrNotFlowOwner, "flow=%s user=%s", id, userID)
	case done && !m.now().After(ts.until):
		return nil, errors.Wrapf(ErrAlreadyResolved, "kind=%s flow=%s", m.kind, id)
	}
	return nil, errors.Wrapf(ErrFlowNotFound, "kind=%s flow=%s", m.kind, id)
}

// expire ends an unresolved flow and detaches its UI.
func (m *Manager[T]) expire(f *Flow[T]) {
	won := f.finish(OutcomeExpired)
	m.forget(f)
	if won {
		zlog.Debug().Msgf("selection expired: kind=%s flow=%s", m.kind, f.id)
		m.runDetach(f, OutcomeExpired)
	}
}

func (m *Manager[T]) forget(f *Flow[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forgetLocked(f)
}

func (m *Manager[T]) forgetLocked(f *Flow[T]) {
	if m.flows[f.id] == f {
		delete(m.flows, f.id)
	}
	if m.byScope[f.scope] == f {
		delete(m.byScope, f.scope)
	}
}

// sweepLocked drops tombstones past their deadline.
func (m *Manager[T]) sweepLocked() {
	now := m.now()
	for id, ts := range m.resolved {
		if now.After(ts.until) {
			delete(m.resolved, id)
		}
	}
}

func (m *Manager[T]) runDetach(f *Flow[T], o Outcome) {
	if m.detach == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("selection detach panicked: kind=%s flow=%s panic=%v", m.kind, f.id, r)
		}
	}()
	m.detach(f, o)
}

// Get returns an open flow.
func (m *Manager[T]) Get(id string) (*Flow[T], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flows[id]
	return f, ok
}

// Pending returns the number of unresolved flows.
func (m *Manager[T]) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, f := range m.flows {
		if f.Outcome() == OutcomePending {
			n++
		}
	}
	return n
}

// Close cancels every pending flow.
func (m *Manager[T]) Close() {
	m.mu.Lock()
	flows := make([]*Flow[T], 0, len(m.flows))
	for _, f := range m.flows {
		flows = append(flows, f)
	}
	m.flows = make(map[string]*Flow[T])
	m.byScope = make(map[string]*Flow[T])
	m.resolved = make(map[string]tombstone)
	m.mu.Unlock()

	for _, f := range flows {
		f.timer.Stop()
		if f.finish(OutcomeCancelled) {
			m.runDetach(f, OutcomeCancelled)
		}
	}
}
