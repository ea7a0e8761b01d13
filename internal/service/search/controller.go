// Package search implements the voice search view-controller: the UI state
// behind the search button and the supervisor that keeps capture running.
package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-search-service/internal/events"
	"voice-search-service/internal/models"
	"voice-search-service/internal/observability/logging"
	"voice-search-service/internal/observability/metrics"
	"voice-search-service/internal/service/stt"
)

// ErrTornDown is returned once the controller has released its capture.
var ErrTornDown = errors.New("search controller has been torn down")

const publishTimeout = 2 * time.Second

// UIState is what the rendered surfaces show.
type UIState struct {
	ShowSearchButton bool   `json:"showSearchButton"`
	SpeechData       string `json:"speechData"`
}

// Stream is a single capture session waiting to be subscribed.
type Stream interface {
	Subscribe(ctx context.Context) (<-chan stt.Event, error)
}

// Capturer opens capture sessions and owns the speech engine.
type Capturer interface {
	StartCapture() Stream
	Destroy() error
}

// Adapt exposes an stt.Capture as a Capturer.
func Adapt(c *stt.Capture) Capturer {
	return captureAdapter{c}
}

type captureAdapter struct {
	c *stt.Capture
}

func (a captureAdapter) StartCapture() Stream { return a.c.StartCapture() }
func (a captureAdapter) Destroy() error { return a.c.Destroy() }

// Option configures a Controller.
type Option func(*Controller)

// WithLogger overrides the controller logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithPublisher fans transcript values and session transitions out to p.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithObserver registers fn to receive every state change in order.
// fn may read State but must not call the other Controller methods.
func WithObserver(fn func(UIState)) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// WithRestartDelay pauses between a session ending and the next one starting.
func WithRestartDelay(d time.Duration) Option {
	return func(c *Controller) { c.restartDelay = d }
}

// Controller owns the UI state and drives capture sessions.
//
// ActivateCapture starts a supervisor goroutine that opens one session after
// another. Values update SpeechData; no-speech and completion open a fresh
// session; any other error stops the supervisor and leaves the button hidden
// until ActivateCapture is called again.
type Controller struct {
	capture      Capturer
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	publisher    events.Publisher
	observers    []func(UIState)
	restartDelay time.Duration

	notifyMu sync.Mutex // orders observer notifications
	mu       sync.RWMutex
	state    UIState

	runMu    sync.Mutex
	running  bool
	tornDown bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a controller in the idle state.
func New(capture Capturer, opts ...Option) *Controller {
	c := &Controller{
		capture: capture,
		logger:  logging.WithComponent("search"),
		metrics: metrics.DefaultMetrics,
		state:   UIState{ShowSearchButton: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init logs that the controller is ready. It does not change state.
func (c *Controller) Init() {
	c.logger.Info().
		Bool("showSearchButton", c.State().ShowSearchButton).
		Msg("Voice search controller initialized")
}

// State returns a snapshot of the UI state.
func (c *Controller) State() UIState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Running reports whether the supervisor is listening.
func (c *Controller) Running() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.running
}

// ActivateCapture hides the search button and starts listening.
//
// The button is hidden before ActivateCapture returns. If a supervisor is
// already running no second session is opened. The supervisor stops when ctx
// is cancelled or on Teardown.
func (c *Controller) ActivateCapture(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.tornDown {
		return ErrTornDown
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.metrics.RecordActivation()
	c.update(func(s *UIState) { s.ShowSearchButton = false })

	if c.running {
		c.logger.Debug().Msg("Capture already active")
		return nil
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	done := make(chan struct{})
	c.running = true
	c.cancel = cancel
	c.done = done

	c.logger.Info().Msg("Voice capture activated")
	go func() {
		defer stop()
		c.supervise(sctx, done)
	}()
	return nil
}

// Teardown stops the supervisor and destroys the capture. No events are
// applied after Teardown returns. Later calls return ErrTornDown.
func (c *Controller) Teardown() error {
	c.runMu.Lock()
	if c.tornDown {
		c.runMu.Unlock()
		return ErrTornDown
	}
	c.tornDown = true
	cancel, done := c.cancel, c.done
	c.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	c.metrics.RecordTeardown()
	c.logger.Info().Msg("Tearing down voice search controller")
	return c.capture.Destroy()
}

// supervise opens sessions until one ends in a way that does not restart.
func (c *Controller) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.finishRun(done)

	for {
		restart, reason := c.runSession(ctx)
		if !restart || ctx.Err() != nil {
			return
		}

		c.metrics.RecordRestart(reason)
		if c.restartDelay > 0 {
			t := time.NewTimer(c.restartDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		c.update(func(s *UIState) { s.ShowSearchButton = false })
	}
}

func (c *Controller) finishRun(done chan struct{}) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.done == done {
		c.running = false
		c.cancel = nil
		c.done = nil
	}
}

// runSession consumes one capture session. It reports whether the
// supervisor should open another one and why.
func (c *Controller) runSession(ctx context.Context) (bool, string) {
	evs, err := c.capture.StartCapture().Subscribe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ""
		}
		c.metrics.RecordEngineError("start-failed")
		c.logger.Error().
			Err(err).
			Bool("stuck", true).
			Msg("Failed to start capture session, listening stopped")
		return false, ""
	}

	for ev := range evs {
		if ctx.Err() != nil {
			return false, ""
		}
		logger := c.logger.With().
			Str("sessionId", ev.Session.String()).
			Uint64("seq", ev.Session.Seq).
			Logger()

		switch ev.Kind {
		case stt.EventValue:
			c.update(func(s *UIState) { s.SpeechData = ev.Value })
			c.metrics.RecordValue()
			logger.Info().Str("text", ev.Value).Bool("final", ev.Final).Msg("Speech recognized")
			if ev.Final || ev.Value != "" {
				c.publishTranscript(ctx, ev)
			}

		case stt.EventError:
			if ev.Err == nil {
				ev.Err = stt.NewError(stt.ErrorAborted, "capture reported an empty error")
			}
			c.metrics.RecordEngineError(ev.Err.Code)
			if ev.Err.IsNoSpeech() {
				logger.Warn().Str("error", ev.Err.Code).Msg("No speech detected")
				logger.Info().Msg("Restarting capture")
				c.publishSession(ctx, ev, models.SessionNoSpeech)
				return true, stt.ErrorNoSpeech
			}
			// The button stays hidden with nothing listening until the
			// surface calls ActivateCapture again.
			logger.Error().
				Str("error", ev.Err.Code).
				Str("message", ev.Err.Message).
				Bool("stuck", true).
				Msg("Speech recognition failed, listening stopped")
			c.publishSession(ctx, ev, models.SessionFailed)
			return false, ""

		case stt.EventComplete:
			c.update(func(s *UIState) { s.ShowSearchButton = true })
			logger.Info().Msg("Speech capture completed")
			c.publishSession(ctx, ev, models.SessionCompleted)
			return true, "complete"
		}
	}

	// Closed without a terminal event: the session was aborted.
	return false, ""
}

// update applies fn to the state and notifies observers with the result.
func (c *Controller) update(fn func(*UIState)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	before := c.state
	fn(&c.state)
	after := c.state
	c.mu.Unlock()

	if before.ShowSearchButton != after.ShowSearchButton {
		c.metrics.RecordSearchButton(after.ShowSearchButton)
	}
	for _, fn := range c.observers {
		fn(after)
	}
}

func (c *Controller) publishTranscript(ctx context.Context, ev stt.Event) {
	if c.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.publisher.PublishTranscript(pctx, models.TranscriptEvent{
		EventType: models.EventTypeTranscript,
		SessionID: ev.Session.UUID,
		Seq:       ev.Session.Seq,
		Text:      ev.Value,
		Final:     ev.Final,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("sessionId", ev.Session.String()).Msg("Failed to publish transcript")
	}
}

func (c *Controller) publishSession(ctx context.Context, ev stt.Event, status string) {
	if c.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	out := models.SessionEvent{
		EventType: models.EventTypeSession,
		SessionID: ev.Session.UUID,
		Seq:       ev.Session.Seq,
		Status:    status,
		Timestamp: time.Now().UnixMilli(),
	}
	if ev.Err != nil {
		out.ErrorCode = ev.Err.Code
	}
	if err := c.publisher.PublishSession(pctx, out); err != nil {
		c.logger.Warn().Err(err).Str("sessionId", ev.Session.String()).Msg("Failed to publish session event")
	}
}
