package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"voice-search-service/internal/models"
	"voice-search-service/internal/observability/metrics"
	"voice-search-service/internal/schema"
)

// natsConn is the part of nats.Conn the publisher uses.
type natsConn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

// NATSConfig holds NATS publisher configuration.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Principal     string
	Timeout       time.Duration
}

// NATSPublisher publishes events on <prefix>.transcript and <prefix>.session.
type NATSPublisher struct {
	conn              natsConn
	principal         string
	subjectTranscript string
	subjectSession    string
	validator         *schema.Validator
	metrics           *metrics.Metrics
}

// NewNATS connects to the NATS server and returns a publisher.
func NewNATS(cfg NATSConfig) (*NATSPublisher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("voice-search-service"),
		nats.Timeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info().
		Str("url", cfg.URL).
		Str("subjectPrefix", cfg.SubjectPrefix).
		Msg("NATS publisher initialized")

	return newNATSWithConn(conn, cfg), nil
}

func newNATSWithConn(conn natsConn, cfg NATSConfig) *NATSPublisher {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "voicesearch"
	}
	return &NATSPublisher{
		conn:              conn,
		principal:         cfg.Principal,
		subjectTranscript: prefix + ".transcript",
		subjectSession:    prefix + ".session",
		validator:         schema.New(),
		metrics:           metrics.DefaultMetrics,
	}
}

// PublishTranscript publishes a transcript value.
func (p *NATSPublisher) PublishTranscript(ctx context.Context, ev models.TranscriptEvent) error {
	return p.publish(ctx, p.subjectTranscript, ev.EventType, ev.SessionID, ev)
}

// PublishSession publishes a session transition.
func (p *NATSPublisher) PublishSession(ctx context.Context, ev models.SessionEvent) error {
	return p.publish(ctx, p.subjectSession, ev.EventType, ev.SessionID, ev)
}

func (p *NATSPublisher) publish(ctx context.Context, subject, eventType, sessionID string, event any) error {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := encode(p.validator, event)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Rejected event")
		p.metrics.RecordPublish("nats", eventType, err, time.Since(start).Seconds())
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set("eventType", eventType)
	msg.Header.Set("principal", p.principal)
	msg.Header.Set("sessionId", sessionID)

	log.Debug().
		Str("subject", subject).
		Str("sessionId", sessionID).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if err := p.conn.PublishMsg(msg); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to publish to NATS")
		p.metrics.RecordPublish("nats", eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordPublish("nats", eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
