// Package stt defines the speech recognition capability and the capture adapter
// that exposes it as a single-use event stream.
package stt

import (
	"context"
	"fmt"
)

// Error codes reported by speech recognition engines.
const (
	// ErrorNoSpeech means no speech was detected before the engine's silence timeout.
	ErrorNoSpeech            = "no-speech"
	ErrorAborted             = "aborted"
	ErrorAudioCapture        = "audio-capture"
	ErrorNetwork             = "network"
	ErrorNotAllowed          = "not-allowed"
	ErrorServiceNotAllowed   = "service-not-allowed"
	ErrorLanguageUnsupported = "language-not-supported"
)

// RecognitionError is the error descriptor emitted by a recognizer.
type RecognitionError struct {
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewError creates a RecognitionError with the given code and message.
func NewError(code, message string) *RecognitionError {
	return &RecognitionError{Code: code, Message: message}
}

// Error implements the error interface.
func (e *RecognitionError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNoSpeech returns true if the engine gave up because nobody spoke.
func (e *RecognitionError) IsNoSpeech() bool {
	return e != nil && e.Code == ErrorNoSpeech
}

// Callback receives results from a running recognizer.
type Callback interface {
	// OnResult is called for every interim or final transcription.
	OnResult(text string, final bool)

	// OnError is called when recognition fails. No further callbacks follow.
	OnError(err *RecognitionError)

	// OnEnd is called when the engine ends the session normally,
	// e.g. after a pause in speech.
	OnEnd()
}

// Recognizer is the platform speech recognition engine (Google, mock, ...).
// A recognizer runs at most one session at a time. Start may be called again
// as soon as the previous session invoked OnEnd or OnError, or after Stop.
type Recognizer interface {
	// Name identifies the engine in logs and metrics.
	Name() string

	// Start begins a recognition session delivering results to cb.
	Start(ctx context.Context, cb Callback) error

	// Stop aborts the running session without further callbacks.
	Stop() error

	// Close releases the engine. The recognizer cannot be started afterwards.
	Close() error
}
