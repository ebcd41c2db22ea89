package upstream

import (
	"sync"
	"time"
)

// Session is the domain's view of one live (or tombstoned) connection to an
// upstream child process. The session pool is
// its exclusive owner; every other component only reads the fields exposed
// here through the pool's API.
type Session struct {
	Spec *Spec

	mu        sync.RWMutex
	state     HealthState
	lastError error
	startedAt time.Time
	tools     []*ToolDescriptor
}

// NewSession returns a session for spec in the Starting state.
func NewSession(spec *Spec) *Session {
	return &Session{Spec: spec, state: StateStarting, startedAt: time.Now()}
}

// State returns the current health state.
func (s *Session) State() HealthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the error that caused the last Failed transition, if any.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// MarkReady transitions Starting -> Ready and records the discovered tool
// catalog for this session.
func (s *Session) MarkReady(tools []*ToolDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReady
	s.tools = tools
}

// MarkFailed transitions the session to the terminal Failed state: Failed
// is terminal in v1, the pool never retries in-process.
func (s *Session) MarkFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	s.lastError = err
}

// MarkClosing transitions Ready -> Closing at the start of shutdown.
func (s *Session) MarkClosing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady {
		s.state = StateClosing
	}
}

// MarkClosed transitions Closing -> Closed once teardown completes. Failed
// stays Failed: a session that crashed before shutdown keeps its terminal
// state.
func (s *Session) MarkClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFailed {
		return
	}
	s.state = StateClosed
}

// Tools returns a snapshot of this session's discovered tool catalog.
func (s *Session) Tools() []*ToolDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ToolDescriptor, len(s.tools))
	copy(out, s.tools)
	return out
}

// Ready reports whether the session can currently accept calls.
func (s *Session) Ready() bool {
	return s.State() == StateReady
}
