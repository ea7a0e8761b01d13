package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"voice-search-service/internal/service/stt"
)

// testCallback implements stt.Callback for testing
type testCallback struct {
	mu      sync.Mutex
	results []result
	errors  []*stt.RecognitionError
	ends    int
	done    chan struct{}
}

type result struct {
	text  string
	final bool
}

func newTestCallback() *testCallback {
	return &testCallback{done: make(chan struct{}, 1)}
}

func (c *testCallback) OnResult(text string, final bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result{text, final})
}

func (c *testCallback) OnError(err *stt.RecognitionError) {
	c.mu.Lock()
	c.errors = append(c.errors, err)
	c.mu.Unlock()
	c.done <- struct{}{}
}

func (c *testCallback) OnEnd() {
	c.mu.Lock()
	c.ends++
	c.mu.Unlock()
	c.done <- struct{}{}
}

func (c *testCallback) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session to end")
	}
}

func (c *testCallback) getResults() []result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]result{}, c.results...)
}

func TestRecognizer_New(t *testing.T) {
	rec := New()
	if rec == nil {
		t.Fatal("expected non-nil recognizer")
	}
	if rec.Name() != "mock" {
		t.Errorf("expected name 'mock', got %s", rec.Name())
	}
	if rec.closed {
		t.Error("expected recognizer to not be closed initially")
	}
	if len(rec.scripts) != len(DefaultScripts) {
		t.Errorf("expected default scripts, got %d", len(rec.scripts))
	}
}

func TestRecognizer_ReplaysValuesThenEnds(t *testing.T) {
	rec := NewWithScripts(time.Millisecond, Script{Values: []string{"bat", "batman"}})
	cb := newTestCallback()

	if err := rec.Start(context.Background(), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cb.wait(t)

	results := cb.getResults()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0] != (result{"bat", false}) {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1] != (result{"batman", true}) {
		t.Errorf("unexpected last result: %+v", results[1])
	}
	if cb.ends != 1 {
		t.Errorf("expected 1 end, got %d", cb.ends)
	}
}

func TestRecognizer_ScriptedError(t *testing.T) {
	rec := NewWithScripts(time.Millisecond, Script{Error: stt.ErrorNoSpeech})
	cb := newTestCallback()

	if err := rec.Start(context.Background(), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cb.wait(t)

	if len(cb.errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(cb.errors))
	}
	if !cb.errors[0].IsNoSpeech() {
		t.Errorf("expected no-speech, got %v", cb.errors[0])
	}
	if cb.ends != 0 {
		t.Errorf("expected no end after error, got %d", cb.ends)
	}
}

func TestRecognizer_CyclesThroughScripts(t *testing.T) {
	rec := NewWithScripts(time.Millisecond,
		Script{Values: []string{"one"}},
		Script{Values: []string{"two"}},
	)

	var got []string
	for i := 0; i < 3; i++ {
		cb := newTestCallback()
		if err := rec.Start(context.Background(), cb); err != nil {
			t.Fatalf("start %d: unexpected error: %v", i, err)
		}
		cb.wait(t)
		got = append(got, cb.getResults()[0].text)
	}

	want := []string{"one", "two", "one"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("session %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if rec.Starts() != 3 {
		t.Errorf("expected 3 starts, got %d", rec.Starts())
	}
}

func TestRecognizer_StartWhileRunning(t *testing.T) {
	rec := NewWithScripts(time.Hour, Script{Values: []string{"never"}})
	defer rec.Close()

	if err := rec.Start(context.Background(), newTestCallback()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rec.Start(context.Background(), newTestCallback()); err != ErrBusy {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestRecognizer_Stop(t *testing.T) {
	rec := NewWithScripts(time.Hour, Script{Values: []string{"never"}})
	cb := newTestCallback()

	if err := rec.Start(context.Background(), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cb.getResults()) != 0 {
		t.Error("expected no results after stop")
	}
	select {
	case <-cb.done:
		t.Error("expected no terminal callback after stop")
	default:
	}

	// A new session may start after Stop
	if err := rec.Start(context.Background(), newTestCallback()); err != nil {
		t.Errorf("expected start after stop to succeed, got %v", err)
	}
	rec.Close()
}

func TestRecognizer_ContextCancel(t *testing.T) {
	rec := NewWithScripts(time.Hour, Script{Values: []string{"never"}})
	cb := newTestCallback()
	ctx, cancel := context.WithCancel(context.Background())

	if err := rec.Start(ctx, cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()
	rec.Stop()

	if len(cb.getResults()) != 0 {
		t.Error("expected no results after cancel")
	}
}

func TestRecognizer_Close_Idempotent(t *testing.T) {
	rec := New()

	if err := rec.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
	if err := rec.Start(context.Background(), newTestCallback()); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestDefaultScripts(t *testing.T) {
	if len(DefaultScripts) == 0 {
		t.Fatal("expected default scripts")
	}

	var sawValues, sawNoSpeech bool
	for i, s := range DefaultScripts {
		if len(s.Values) == 0 && s.Error == "" {
			t.Errorf("script %d neither speaks nor fails", i)
		}
		if len(s.Values) > 0 {
			sawValues = true
		}
		if s.Error == stt.ErrorNoSpeech {
			sawNoSpeech = true
		}
	}
	if !sawValues || !sawNoSpeech {
		t.Error("expected default scripts to cover transcriptions and no-speech")
	}
}
