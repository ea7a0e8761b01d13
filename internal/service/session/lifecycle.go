// Package session provides capture session IDs and lifecycle management.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a capture session.
type State int

const (
	// StateOpen - Session is listening, can emit values.
	StateOpen State = iota
	// StateCompleted - Engine ended the session normally.
	StateCompleted
	// StateFailed - Engine ended the session with an error.
	StateFailed
	// StateAborted - Session was cancelled by its subscriber.
	// No terminal event is delivered for an aborted session.
	StateAborted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for every state except OPEN.
func (s State) IsTerminal() bool {
	return s != StateOpen
}

// Errors for invalid state transitions.
var (
	ErrSessionEnded = errors.New("session has ended")
)

// Lifecycle manages the state machine for a single capture session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	OPEN ──EmitValue()──→ OPEN (multiple times)
//	  │
//	  ├── Complete() ──→ COMPLETED
//	  ├── Fail()     ──→ FAILED
//	  └── Abort()    ──→ ABORTED
//
// Rules:
//   - OPEN: values allowed, exactly one of Complete/Fail/Abort ends the session
//   - terminal states: all operations return ErrSessionEnded (Abort returns false)
type Lifecycle struct {
	mu    sync.RWMutex
	id    ID
	state State
}

// NewLifecycle creates a new session lifecycle in OPEN state.
func NewLifecycle(id ID) *Lifecycle {
	return &Lifecycle{
		id:    id,
		state: StateOpen,
	}
}

// ID returns the session ID.
func (l *Lifecycle) ID() ID {
	return l.id
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsEnded returns true if the session is in a terminal state.
func (l *Lifecycle) IsEnded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// EmitValue validates a value emission.
func (l *Lifecycle) EmitValue() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state != StateOpen {
		return ErrSessionEnded
	}
	return nil
}

// Complete transitions to COMPLETED.
func (l *Lifecycle) Complete() error {
	return l.end(StateCompleted)
}

// Fail transitions to FAILED.
func (l *Lifecycle) Fail() error {
	return l.end(StateFailed)
}

// Abort transitions to ABORTED.
// Returns true if the session was aborted, false if it had already ended.
func (l *Lifecycle) Abort() bool {
	return l.end(StateAborted) == nil
}

func (l *Lifecycle) end(to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return ErrSessionEnded
	}
	l.state = to
	return nil
}
