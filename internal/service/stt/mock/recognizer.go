// Package mock provides a scripted speech recognizer for running without a real engine.
// Each session replays one Script: progressive transcriptions followed by either a
// normal end of session or an engine error such as no-speech.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"voice-search-service/internal/service/stt"
)

// Script describes one simulated recognition session.
type Script struct {
	Values []string // Progressive transcriptions; the last one is reported as final
	Error  string   // Terminal error code; empty ends the session normally
}

// DefaultScripts provides sample search sessions for simulation.
var DefaultScripts = []Script{
	{
		Values: []string{"bat", "batman", "batman begins"},
	},
	{
		Error: stt.ErrorNoSpeech,
	},
	{
		Values: []string{"the dark", "the dark knight"},
	},
	{
		Values: []string{"inter", "interstellar"},
	},
	{
		Error: stt.ErrorNoSpeech,
	},
	{
		Values: []string{"memento"},
	},
}

// DefaultDelay is the pause between simulated results.
const DefaultDelay = 300 * time.Millisecond

// Errors returned by the mock recognizer.
var (
	ErrClosed = errors.New("mock recognizer is closed")
	ErrBusy   = errors.New("mock recognizer is already running a session")
)

// Recognizer implements stt.Recognizer by replaying scripts in order, cycling
// back to the first script after the last one.
type Recognizer struct {
	scripts []Script
	delay   time.Duration

	mu     sync.Mutex
	next   int
	starts int
	run    *run
	closed bool
}

type run struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	finished bool
}

// New creates a mock recognizer replaying DefaultScripts.
func New() *Recognizer {
	return NewWithScripts(DefaultDelay, DefaultScripts...)
}

// NewWithScripts creates a mock recognizer replaying the given scripts with
// delay between results.
func NewWithScripts(delay time.Duration, scripts ...Script) *Recognizer {
	if len(scripts) == 0 {
		scripts = DefaultScripts
	}
	return &Recognizer{
		scripts: scripts,
		delay:   delay,
	}
}

// Name identifies the engine.
func (r *Recognizer) Name() string {
	return "mock"
}

// Starts returns how many sessions were started.
func (r *Recognizer) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Start begins replaying the next script.
func (r *Recognizer) Start(ctx context.Context, cb stt.Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.run != nil && !r.run.finished {
		return ErrBusy
	}

	script := r.scripts[r.next%len(r.scripts)]
	r.next++
	r.starts++

	cur := &run{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	r.run = cur

	go r.play(ctx, cur, script, cb)
	return nil
}

func (r *Recognizer) play(ctx context.Context, cur *run, script Script, cb stt.Callback) {
	defer close(cur.done)

	for i, value := range script.Values {
		if !r.wait(ctx, cur) {
			return
		}
		cb.OnResult(value, i == len(script.Values)-1)
	}
	if !r.wait(ctx, cur) {
		return
	}

	// Mark the run finished before the terminal callback so that the
	// subscriber can start the next session from inside its handler.
	r.mu.Lock()
	cur.finished = true
	r.mu.Unlock()

	if script.Error != "" {
		cb.OnError(stt.NewError(script.Error, "simulated engine error"))
		return
	}
	cb.OnEnd()
}

func (r *Recognizer) wait(ctx context.Context, cur *run) bool {
	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-cur.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// Stop aborts the running session, if any, and waits for it to exit.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	cur := r.run
	r.run = nil
	r.mu.Unlock()

	if cur != nil {
		cur.stopOnce.Do(func() { close(cur.stop) })
		<-cur.done
	}
	return nil
}

// Close stops the running session and rejects further sessions. Idempotent.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	return r.Stop()
}
