package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voice-search-service/internal/observability/logging"
	"voice-search-service/internal/observability/metrics"
	"voice-search-service/internal/service/session"
)

// Errors returned when a capture session cannot be started.
var (
	ErrCaptureDestroyed = errors.New("capture has been destroyed")
	ErrSessionActive    = errors.New("a capture session is already active")
	ErrStreamConsumed   = errors.New("stream has already been subscribed")
)

// defaultEventBuffer is the channel capacity of a subscription.
const defaultEventBuffer = 16

// Capture wraps a Recognizer and exposes each recognition session as a
// single-use event stream. It owns the recognizer's lifecycle: at most one
// session runs at a time and Destroy releases the engine.
type Capture struct {
	rec     Recognizer
	ids     *session.Generator
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu        sync.Mutex
	active    bool
	destroyed bool
}

// NewCapture creates a capture adapter around the given recognizer.
func NewCapture(rec Recognizer) *Capture {
	return &Capture{
		rec:     rec,
		ids:     session.New(),
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithEngine("capture", rec.Name()),
	}
}

// StartCapture returns a lazy stream for one capture session.
// The recognizer is not touched until the stream is subscribed.
func (c *Capture) StartCapture() *Stream {
	return &Stream{capture: c}
}

// Destroy releases the underlying recognizer. Later calls are no-ops.
// Streams must not be subscribed after Destroy.
func (c *Capture) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	active := c.active
	c.mu.Unlock()

	if active {
		c.logger.Warn().Msg("Destroying capture while a session is active")
	}
	c.logger.Info().Msg("Releasing speech recognizer")
	return c.rec.Close()
}

// Destroyed reports whether Destroy has been called.
func (c *Capture) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *Capture) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrCaptureDestroyed
	}
	if c.active {
		return ErrSessionActive
	}
	c.active = true
	return nil
}

func (c *Capture) release() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// Stream is a single-use sequence of recognition events.
type Stream struct {
	capture *Capture
	used    atomic.Bool
}

// Subscribe starts the capture session and returns its events.
//
// The channel delivers zero or more EventValue, then exactly one EventError or
// EventComplete, and is then closed. If ctx is cancelled first the recognizer is
// stopped and the channel is closed without a terminal event.
func (s *Stream) Subscribe(ctx context.Context) (<-chan Event, error) {
	if !s.used.CompareAndSwap(false, true) {
		return nil, ErrStreamConsumed
	}
	c := s.capture
	if err := c.acquire(); err != nil {
		return nil, err
	}

	id := c.ids.Next()
	sub := &subscription{
		ctx:     ctx,
		id:      id,
		ch:      make(chan Event, defaultEventBuffer),
		done:    make(chan struct{}),
		lc:      session.NewLifecycle(id),
		capture: c,
		started: time.Now(),
		logger:  c.logger.With().Str("sessionId", id.String()).Uint64("seq", id.Seq).Logger(),
	}

	c.metrics.RecordSessionStart()
	sub.logger.Debug().Msg("Starting capture session")

	if err := c.rec.Start(ctx, sub); err != nil {
		_ = sub.lc.Fail()
		c.release()
		c.metrics.RecordSessionEnd(session.StateFailed.String(), time.Since(sub.started).Seconds())
		return nil, fmt.Errorf("start %s recognizer: %w", c.rec.Name(), err)
	}

	go sub.watch()
	return sub.ch, nil
}

// subscription implements Callback for one session and forwards results
// into the stream channel in the order the recognizer reports them.
type subscription struct {
	ctx     context.Context
	id      session.ID
	ch      chan Event
	done    chan struct{}
	lc      *session.Lifecycle
	capture *Capture
	started time.Time
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func (s *subscription) OnResult(text string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.lc.EmitValue() != nil {
		return
	}
	s.send(Event{Kind: EventValue, Value: text, Final: final})
}

func (s *subscription) OnError(err *RecognitionError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.lc.Fail() != nil {
		return
	}
	if err == nil {
		err = NewError(ErrorAborted, "recognizer reported an empty error")
	}
	s.terminate(Event{Kind: EventError, Err: err})
}

func (s *subscription) OnEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.lc.Complete() != nil {
		return
	}
	s.terminate(Event{Kind: EventComplete})
}

// send must be called with mu held.
func (s *subscription) send(ev Event) {
	ev.Session = s.id
	select {
	case s.ch <- ev:
	case <-s.ctx.Done():
	}
}

// terminate delivers the terminal event and closes the stream.
// The capture is released first so the subscriber may start the next
// session as soon as it observes ev. Must be called with mu held.
func (s *subscription) terminate(ev Event) {
	s.closed = true
	s.capture.release()
	s.capture.metrics.RecordSessionEnd(s.lc.State().String(), time.Since(s.started).Seconds())
	s.logger.Debug().Str("state", s.lc.State().String()).Msg("Capture session ended")

	s.send(ev)
	close(s.ch)
	close(s.done)
}

// abort stops forwarding callbacks. The channel stays open until the
// recognizer has stopped; see watch.
func (s *subscription) abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.lc.Abort() {
		return false
	}
	s.closed = true
	return true
}

// watch aborts the session when ctx is cancelled. The stream is closed only
// after the recognizer has stopped and the capture is released, so a
// subscriber that sees the end may Destroy the capture.
func (s *subscription) watch() {
	select {
	case <-s.done:
		return
	case <-s.ctx.Done():
	}
	if !s.abort() {
		return
	}
	if err := s.capture.rec.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stop recognizer")
	}
	s.capture.release()
	s.capture.metrics.RecordSessionEnd(session.StateAborted.String(), time.Since(s.started).Seconds())
	s.logger.Debug().Msg("Capture session aborted")
	close(s.ch)
}
