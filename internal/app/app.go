package app

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voice-search-service/internal/config"
	"voice-search-service/internal/observability/logging"
	"voice-search-service/internal/service/search"
)

// Searcher is the part of the search controller the rendered surfaces use.
type Searcher interface {
	State() search.UIState
	Running() bool
	ActivateCapture(ctx context.Context) error
}

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Search      Searcher

	ready atomic.Bool
}

// New constructs a new Application and configures logging to stdout.
func New(cfg *config.Config) *Application {
	return NewWithLogOutput(cfg, os.Stdout)
}

// NewWithLogOutput constructs a new Application with logs written to out.
func NewWithLogOutput(cfg *config.Config, out io.Writer) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger(out)

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Voice search service application created")
	return a
}

// setupLogger configures the global zerolog logger for the service.
func (a *Application) setupLogger(out io.Writer) {
	lc := logging.DefaultConfig()
	lc.Level = a.Cfg.Observability.LogLevel
	lc.Format = a.Cfg.Observability.LogFormat
	logging.InitWithWriter(lc, out)

	a.Logger = logging.WithComponent("application")
	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", a.Cfg.Service.Env).
		Msg("Logger setup completed")
}

// Start records the startup time and marks the application ready.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("sttProvider", a.Cfg.STT.Provider).
		Str("view", a.Cfg.View.Mode).
		Msg("Voice search service starting")

	return nil
}

// Ready reports whether the application is serving.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown marks the application as not ready.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	shutdownLogger.Info().
		Dur("uptime", time.Since(a.StartupTime)).
		Msg("Voice search service shutting down")
}
