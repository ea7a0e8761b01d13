//go:build !portaudio

package audio

import "context"

// Microphone is unavailable without the portaudio build tag.
type Microphone struct{}

// NewMicrophone returns a microphone that fails to open.
func NewMicrophone() *Microphone {
	return &Microphone{}
}

func (m *Microphone) Open(sampleRate int) error { return ErrUnavailable }

func (m *Microphone) Read(ctx context.Context) ([]byte, error) { return nil, ErrUnavailable }

func (m *Microphone) Close() error { return nil }
