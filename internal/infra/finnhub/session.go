package finnhub

import (
	"sync"

	"exchange_pro/internal/domain"
)

// Session holds the per-process connectivity context.
// Once degraded, a session stays degraded; callers replace the session to recover.
type Session struct {
	mu        sync.Mutex
	degraded  bool
	state     domain.ConnectivityState
	observers []func(domain.ConnectivityState)
}

// NewSession creates a healthy session with no reported state yet
func NewSession() *Session {
	return &Session{}
}

// Degrade permanently disables real fetches for this session
func (s *Session) Degrade() {
	s.mu.Lock()
	s.degraded = true
	s.mu.Unlock()
	s.Report(domain.StateDegraded)
}

// Degraded reports whether real fetches are disabled
func (s *Session) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Report records the latest connectivity state and notifies observers on change
func (s *Session) Report(state domain.ConnectivityState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	observers := make([]func(domain.ConnectivityState), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

// State returns the last reported connectivity state
func (s *Session) State() domain.ConnectivityState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to be called on every state change
func (s *Session) Subscribe(fn func(domain.ConnectivityState)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}
