package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"voice-search-service/internal/app"
	"voice-search-service/internal/config"
	"voice-search-service/internal/events"
	httpapi "voice-search-service/internal/http"
	"voice-search-service/internal/observability"
	"voice-search-service/internal/observability/metrics"
	"voice-search-service/internal/service/audio"
	"voice-search-service/internal/service/search"
	"voice-search-service/internal/service/stt"
	"voice-search-service/internal/service/stt/google"
	"voice-search-service/internal/service/stt/mock"
	"voice-search-service/internal/tui"
)

const healthService = "voicesearch.VoiceSearch"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "voice-search-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine
	_ = godotenv.Load()

	cfg, err := config.LoadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}

	var application *app.Application
	if cfg.View.Mode == "tui" {
		// Logs would corrupt the terminal UI
		f, err := os.OpenFile(cfg.Observability.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		application = app.NewWithLogOutput(cfg, f)
	} else {
		application = app.New(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.DefaultMetrics
	obs := observability.NewServer(":"+cfg.Service.MetricsPort, application.Ready)
	obs.Start()

	// gRPC health for orchestrators
	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(m)),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	go func() {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC health server started")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC serve failed")
		}
	}()

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	rec, err := newRecognizer(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []search.Option{
		search.WithPublisher(publisher),
		search.WithRestartDelay(cfg.Capture.RestartDelay),
	}
	if cfg.View.Mode == "tui" {
		opts = append(opts, search.WithObserver(tui.Notify))
	}
	controller := search.New(search.Adapt(stt.NewCapture(rec)), opts...)
	controller.Init()
	application.Search = controller

	if err := application.Start(); err != nil {
		return err
	}
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_SERVING)

	var httpServer *http.Server
	switch cfg.View.Mode {
	case "tui":
		if _, err := tui.NewProgram(ctx, controller).Run(); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Terminal UI failed")
		}
	default:
		httpServer = &http.Server{
			Addr:         ":" + cfg.Service.HTTPPort,
			Handler:      httpapi.NewRouter(application),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("port", cfg.Service.HTTPPort).Msg("Voice search HTTP server started")
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("HTTP server error")
				stop()
			}
		}()
		<-ctx.Done()
	}

	application.Shutdown()
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
	}
	if err := controller.Teardown(); err != nil {
		log.Error().Err(err).Msg("Controller teardown failed")
	}
	grpcServer.GracefulStop()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown failed")
	}
	return nil
}

func newRecognizer(ctx context.Context, cfg *config.Config) (stt.Recognizer, error) {
	switch cfg.STT.Provider {
	case "google":
		gc := google.Config{
			LanguageCode:    cfg.STT.LanguageCode,
			SampleRateHz:    cfg.STT.SampleRateHz,
			InterimResults:  cfg.STT.InterimResults,
			AudioEncoding:   cfg.STT.AudioEncoding,
			NoSpeechTimeout: cfg.STT.NoSpeechTimeout,
		}
		rec, err := google.New(ctx, gc, audio.NewMicrophone())
		if err != nil {
			return nil, fmt.Errorf("create google recognizer: %w", err)
		}
		return rec, nil
	case "mock", "":
		return mock.NewWithScripts(cfg.STT.MockDelay, mock.DefaultScripts...), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STT.Provider)
	}
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.Events.Backend {
	case "nats":
		return events.NewNATS(events.NATSConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Principal:     cfg.Service.Principal,
		})
	case "kafka", "none", "":
		// Log-only unless Kafka is enabled with brokers
		return events.New(&events.Config{
			Enabled:         cfg.Kafka.Enabled,
			Brokers:         cfg.Kafka.Brokers,
			TopicTranscript: cfg.Kafka.TopicTranscript,
			TopicSession:    cfg.Kafka.TopicSession,
			Principal:       cfg.Kafka.Principal,
		}), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}
