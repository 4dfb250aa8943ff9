package engine

import "sync/atomic"

// Status is the process-wide engine connectivity flag.
type Status struct {
	online atomic.Bool
}

// NewStatus creates a status that starts offline.
func NewStatus() *Status {
	return &Status{}
}

// Set records the connectivity and reports whether it changed.
func (s *Status) Set(online bool) bool {
	return s.online.Swap(online) != online
}

// Online reports whether a node is connected.
func (s *Status) Online() bool {
	return s.online.Load()
}

// Check returns ErrEngineOffline when no node is connected.
func (s *Status) Check() error {
	if !s.Online() {
		return ErrEngineOffline
	}
	return nil
}
