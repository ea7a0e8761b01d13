package stt

import (
	"fmt"

	"voice-search-service/internal/service/session"
)

// EventKind discriminates the events of a capture stream.
type EventKind int

const (
	// EventValue carries an interim or final transcription.
	EventValue EventKind = iota
	// EventError terminates the stream with a recognition error.
	EventError
	// EventComplete terminates the stream normally.
	EventComplete
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	switch k {
	case EventValue:
		return "VALUE"
	case EventError:
		return "ERROR"
	case EventComplete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", k)
	}
}

// Event is a single item delivered by a capture stream.
type Event struct {
	Kind    EventKind
	Session session.ID
	Value   string
	Final   bool
	Err     *RecognitionError
}

// IsTerminal returns true for error and completion events.
func (e Event) IsTerminal() bool {
	return e.Kind == EventError || e.Kind == EventComplete
}
