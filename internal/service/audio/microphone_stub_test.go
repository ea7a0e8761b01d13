//go:build !portaudio

package audio

import (
	"context"
	"errors"
	"testing"
)

var _ Source = (*Microphone)(nil)

func TestMicrophone_Unavailable(t *testing.T) {
	m := NewMicrophone()

	if err := m.Open(16000); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable from Open, got %v", err)
	}
	if _, err := m.Read(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable from Read, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("expected Close to succeed, got %v", err)
	}
}
