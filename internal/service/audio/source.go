// Package audio provides the PCM sources that feed streaming speech engines.
package audio

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the binary was built without microphone support.
var ErrUnavailable = errors.New("microphone support not compiled in (build with -tags portaudio)")

// Source produces 16-bit little-endian mono PCM.
type Source interface {
	// Open acquires the device at the given sample rate.
	Open(sampleRate int) error

	// Read blocks until the next chunk of PCM is available.
	Read(ctx context.Context) ([]byte, error)

	// Close releases the device. Idempotent.
	Close() error
}
