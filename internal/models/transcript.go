// Package models defines the data structures for voice search events.
package models

// Event types published on the message bus.
const (
	EventTypeTranscript = "voicesearch.transcript"
	EventTypeSession    = "voicesearch.session"
)

// Session statuses carried by SessionEvent.
const (
	SessionCompleted = "completed"
	SessionNoSpeech  = "no-speech"
	SessionFailed    = "failed"
)

// TranscriptEvent represents a transcription value observed during a capture session.
type TranscriptEvent struct {
	EventType string `json:"eventType" validate:"required,eq=voicesearch.transcript"`
	SessionID string `json:"sessionId" validate:"required,uuid"`
	Seq       uint64 `json:"seq" validate:"gte=1"`
	Text      string `json:"text" validate:"max=4096"`
	Final     bool   `json:"final"`
	Timestamp int64  `json:"timestamp" validate:"gt=0"`
}

// SessionEvent represents a capture session lifecycle transition.
type SessionEvent struct {
	EventType string `json:"eventType" validate:"required,eq=voicesearch.session"`
	SessionID string `json:"sessionId" validate:"required,uuid"`
	Seq       uint64 `json:"seq" validate:"gte=1"`
	Status    string `json:"status" validate:"required,oneof=completed no-speech failed"`
	ErrorCode string `json:"errorCode,omitempty" validate:"required_if=Status failed"`
	Timestamp int64  `json:"timestamp" validate:"gt=0"`
}
