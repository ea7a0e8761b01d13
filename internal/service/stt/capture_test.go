package stt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeRecognizer hands the callback to the test so it can drive the session.
type fakeRecognizer struct {
	mu       sync.Mutex
	cb       Callback
	starts   int
	stops    int
	closes   int
	startErr error
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Start(ctx context.Context, cb Callback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.cb = cb
	return nil
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeRecognizer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeRecognizer) callback() Callback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *fakeRecognizer) counts() (starts, stops, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops, f.closes
}

func recv(t *testing.T, ch <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}, false
	}
}

func TestStream_IsLazy(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(rec)

	c.StartCapture()

	if starts, _, _ := rec.counts(); starts != 0 {
		t.Errorf("expected recognizer untouched before Subscribe, got %d starts", starts)
	}
}

func TestStream_ValuesThenComplete(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(rec)

	events, err := c.StartCapture().Subscribe(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cb := rec.callback()
	cb.OnResult("bat", false)
	cb.OnResult("batman", true)
	cb.OnEnd()

	ev, _ := recv(t, events)
	if ev.Kind != EventValue || ev.Value != "bat" || ev.Final {
		t.Errorf("unexpected first event: %+v", ev)
	}
	ev, _ = recv(t, events)
	if ev.Kind != EventValue || ev.Value != "batman" || !ev.Final {
		t.Errorf("unexpected second event: %+v", ev)
	}
	ev, _ = recv(t, events)
	if ev.Kind != EventComplete {
		t.Errorf("expected complete, got %v", ev.Kind)
	}
	if ev.Session.Seq != 1 || ev.Session.UUID == "" {
		t.Errorf("expected events tagged with the first session, got %+v", ev.Session)
	}
	if _, ok := recv(t, events); ok {
		t.Error("expected channel to be closed after completion")
	}
}

func TestStream_ErrorTerminates(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(rec)

	events, err := c.StartCapture().Subscribe(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cb := rec.callback()
	cb.OnError(NewError(ErrorNoSpeech, ""))
	// Callbacks after the terminal event are ignored
	cb.OnResult("late", true)
	cb.OnEnd()

	ev, _ := recv(t, events)
	if ev.Kind != EventError || !ev.Err.IsNoSpeech() {
		t.Errorf("expected no-speech error, got %+v", ev)
	}
	if _, ok := recv(t, events); ok {
		t.Error("expected channel to be closed after error")
	}
}

func TestStream_SingleUse(t *testing.T) {
	c := NewCapture(&fakeRecognizer{})
	s := c.StartCapture()

	if _, err := s.Subscribe(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Subscribe(context.Background()); err != ErrStreamConsumed {
		t.Errorf("expected ErrStreamConsumed, got %v", err)
	}
}

func TestCapture_RejectsOverlappingSessions(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(rec)

	if _, err := c.StartCapture().Subscribe(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.StartCapture().Subscribe(context.Background()); err != ErrSessionActive {
		t.Errorf("expected ErrSessionActive, got %v", err)
	}
}

func TestCapture_NextSessionAfterTerminalEvent(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(rec)

	events, err := c.StartCapture().Subscribe(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.callback().OnEnd()
	if ev, _ := recv(t, events); ev.Kind != EventComplete {
		t.Fatalf("expected complete, got %v", ev.Kind)
	}

	// The capture is free as soon as the terminal event is observable
	if _, err := c.StartCapture().Subscribe(context.Background()); err != nil {
		t.Errorf("expected second session to start, got %v", err)
	}
	if starts, _, _ := rec.counts(); starts != 2 {
		t.Errorf("expected 2 starts, got %d", starts)
	}
}

func TestStream_CancelAborts(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(rec)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := c.StartCapture().Subscribe(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cb := rec.callback()
	cancel()

	if _, ok := recv(t, events); ok {
		t.Error("expected channel closed without a terminal event")
	}

	// The recognizer is stopped and the capture released before the close
	if _, stops, _ := rec.counts(); stops != 1 {
		t.Errorf("expected recognizer stopped before the stream closed, got %d stops", stops)
	}

	// Late callbacks must not panic on the closed channel
	cb.OnResult("late", true)
	cb.OnEnd()

	if _, err := c.StartCapture().Subscribe(context.Background()); err != nil {
		t.Fatalf("expected capture to be released, got %v", err)
	}
}

// slowStopRecognizer takes a while to stop and records whether Close
// overlapped a Stop still in progress.
type slowStopRecognizer struct {
	fakeRecognizer
	stopping atomic.Bool
	overlap  atomic.Bool
}

func (r *slowStopRecognizer) Stop() error {
	r.stopping.Store(true)
	defer r.stopping.Store(false)
	time.Sleep(50 * time.Millisecond)
	return r.fakeRecognizer.Stop()
}

func (r *slowStopRecognizer) Close() error {
	if r.stopping.Load() {
		r.overlap.Store(true)
	}
	return r.fakeRecognizer.Close()
}

func TestStream_CancelThenDestroyWaitsForStop(t *testing.T) {
	rec := &slowStopRecognizer{}
	c := NewCapture(rec)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := c.StartCapture().Subscribe(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()

	for range events {
	}
	if err := c.Destroy(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.overlap.Load() {
		t.Error("expected Close after the aborted session finished stopping")
	}
}

func TestStream_StartFailure(t *testing.T) {
	startErr := errors.New("microphone unavailable")
	rec := &fakeRecognizer{startErr: startErr}
	c := NewCapture(rec)

	_, err := c.StartCapture().Subscribe(context.Background())
	if !errors.Is(err, startErr) {
		t.Fatalf("expected wrapped start error, got %v", err)
	}

	// A failed start does not hold the capture
	rec.mu.Lock()
	rec.startErr = nil
	rec.mu.Unlock()
	if _, err := c.StartCapture().Subscribe(context.Background()); err != nil {
		t.Errorf("expected retry to succeed, got %v", err)
	}
}

func TestCapture_Destroy(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(rec)

	if err := c.Destroy(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Destroy(); err != nil {
		t.Fatalf("unexpected error on second destroy: %v", err)
	}
	if _, _, closes := rec.counts(); closes != 1 {
		t.Errorf("expected recognizer closed once, got %d", closes)
	}
	if !c.Destroyed() {
		t.Error("expected Destroyed to be true")
	}
	if _, err := c.StartCapture().Subscribe(context.Background()); err != ErrCaptureDestroyed {
		t.Errorf("expected ErrCaptureDestroyed, got %v", err)
	}
}

func TestRecognitionError(t *testing.T) {
	tests := []struct {
		err      *RecognitionError
		want     string
		noSpeech bool
	}{
		{NewError(ErrorNoSpeech, ""), "no-speech", true},
		{NewError(ErrorNetwork, "connection reset"), "network: connection reset", false},
		{nil, "", false},
	}

	for _, tt := range tests {
		if tt.err != nil && tt.err.Error() != tt.want {
			t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.want)
		}
		if got := tt.err.IsNoSpeech(); got != tt.noSpeech {
			t.Errorf("IsNoSpeech() = %v, want %v", got, tt.noSpeech)
		}
	}
}

func TestEventKind_String(t *testing.T) {
	tests := []struct {
		kind     EventKind
		expected string
	}{
		{EventValue, "VALUE"},
		{EventError, "ERROR"},
		{EventComplete, "COMPLETE"},
		{EventKind(7), "UNKNOWN(7)"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.expected {
			t.Errorf("EventKind(%d).String() = %s, want %s", tt.kind, got, tt.expected)
		}
	}
}
