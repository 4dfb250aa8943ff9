// Package selection provides time-bounded, single-consumer choice flows.
package selection

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/drum/internal/app/presenter"
)

// Errors
var (
	ErrNotFlowOwner    = errors.New("not the flow owner")
	ErrAlreadyResolved = errors.New("selection already resolved")
	ErrFlowExpired     = errors.New("selection expired")
	ErrFlowNotFound    = errors.New("selection not found")
	ErrInvalidOption   = errors.New("invalid option")
)

// Outcome represents the terminal state of a flow.
type Outcome int32

const (
	OutcomePending    Outcome = iota // Still open
	OutcomeResolved                  // Owner picked an option
	OutcomeExpired                   // Deadline passed
	OutcomeSuperseded                // Owner opened a newer flow of the same kind
	OutcomeCancelled                 // Closed on shutdown
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeResolved:
		return "resolved"
	case OutcomeExpired:
		return "expired"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Flow is one outstanding choice offered to a single user.
type Flow[T any] struct {
	id      string
	scope   string
	ownerID string
	options []T
	expiry  time.Time

	state atomic.Int32 // Outcome; leaves OutcomePending exactly once
	timer *time.Timer

	refMu sync.Mutex
	ref   presenter.Ref
}

// ID returns the flow identifier embedded in its UI component.
func (f *Flow[T]) ID() string {
	return f.id
}

// OwnerID returns the only user allowed to resolve the flow.
func (f *Flow[T]) OwnerID() string {
	return f.ownerID
}

// Options returns a copy of the candidates.
func (f *Flow[T]) Options() []T {
	out := make([]T, len(f.options))
	copy(out, f.options)
	return out
}

// Expiry returns the absolute deadline.
func (f *Flow[T]) Expiry() time.Time {
	return f.expiry
}

// Outcome returns the current state.
func (f *Flow[T]) Outcome() Outcome {
	return Outcome(f.state.Load())
}

// Ref returns the attached UI surface.
func (f *Flow[T]) Ref() presenter.Ref {
	f.refMu.Lock()
	defer f.refMu.Unlock()
	return f.ref
}

// Attach records the message showing the choice list. It returns false when
// the flow already ended, in which case the caller must detach the UI itself.
func (f *Flow[T]) Attach(ref presenter.Ref) bool {
	f.refMu.Lock()
	defer f.refMu.Unlock()
	f.ref = ref
	o := f.Outcome()
	return o == OutcomePending || o == OutcomeResolved
}

// finish moves the flow to a terminal outcome. Only the first caller wins.
func (f *Flow[T]) finish(o Outcome) bool {
	return f.state.CompareAndSwap(int32(OutcomePending), int32(o))
}

// closedErr maps a terminal outcome to the error a late resolver sees.
func (f *Flow[T]) closedErr() error {
	switch f.Outcome() {
	case OutcomeResolved:
		return ErrAlreadyResolved
	case OutcomeExpired:
		return ErrFlowExpired
	default:
		return ErrFlowNotFound
	}
}
