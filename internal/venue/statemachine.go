// Package venue provides the shared scaffolding every concrete Venue Stream
// Client builds on: the connection state machine, reconnect backoff policy,
// and malformed-message ratio tracking. Wire-format parsing lives in the
// venuea/venueb/venuec subpackages.
package venue

import (
	"sync"
	"time"

	"github.com/arbworker/livearb/internal/domain"
)

// StateMachine owns one Venue Stream Client's ConnectionStatus and notifies
// registered handlers on every transition. It is written only by the owning
// client and read freely by everything else.
type StateMachine struct {
	mu       sync.RWMutex
	status   domain.ConnectionStatus
	handlers []domain.StateChangeHandler
}

// NewStateMachine creates a StateMachine starting in IDLE for the given
// venue.
func NewStateMachine(v domain.Venue) *StateMachine {
	return &StateMachine{
		status: domain.ConnectionStatus{Venue: v, State: domain.ConnIdle},
	}
}

// Status returns a copy of the current ConnectionStatus.
func (s *StateMachine) Status() domain.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// OnChange registers a handler invoked after every transition.
func (s *StateMachine) OnChange(h domain.StateChangeHandler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// Transition moves to a new state, optionally clearing the error message,
// and fires registered handlers with the updated status.
func (s *StateMachine) Transition(to domain.ConnState, errMsg string) {
	s.mu.Lock()
	s.status.State = to
	s.status.ErrorMessage = errMsg
	snapshot := s.status
	handlers := append([]domain.StateChangeHandler(nil), s.handlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() { recover() }()
			h(snapshot)
		}()
	}
}

// RecordMessage stamps LastMessageAt with now.
func (s *StateMachine) RecordMessage() {
	s.mu.Lock()
	s.status.LastMessageAt = time.Now()
	s.mu.Unlock()
}

// SetSubscribedCount updates the externally observable subscription count.
func (s *StateMachine) SetSubscribedCount(n int) {
	s.mu.Lock()
	s.status.SubscribedCount = n
	s.mu.Unlock()
}

// Disable transitions straight to DISABLED; used at construction time when
// required credentials/URL are absent.
func (s *StateMachine) Disable(reason string) {
	s.Transition(domain.ConnDisabled, reason)
}
