// Package events publishes marketplace domain events.
// Subjects are relative ("project.submitted") and prefixed by the publisher
// with events.subject_prefix. Payloads are JSON encoded.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

// Subjects of published events / Sujets des événements publiés
const (
	ProjectSubmitted   = "project.submitted"
	ProjectModerated   = "project.moderated"
	ProjectStatus      = "project.status_changed"
	OfferSubmitted     = "offer.submitted"
	OfferStatusChanged = "offer.status_changed"
	MessageSent        = "message.sent"
	DocumentUploaded   = "document.uploaded"
	DocumentReviewed   = "document.reviewed"
	DocumentExpired    = "document.expired"
)

var (
	_ ports.EventPublisher = (*NATSPublisher)(nil)
	_ ports.EventPublisher = (*LogPublisher)(nil)
)

// Envelope wraps every payload / Enveloppe de chaque événement
type Envelope struct {
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func encode(subject string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Subject: subject, OccurredAt: time.Now().UTC(), Data: payload})
}

func join(prefix, subject string) string {
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}

// NATSPublisher publishes events on a NATS connection / Publie sur une connexion NATS
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to url / Se connecte à l'URL NATS
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("chantier-direct"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Publish sends payload on prefix.subject / Publie le message
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(subject, payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.conn.Publish(join(p.prefix, subject), data)
}

// Close flushes pending messages and closes the connection / Vide et ferme la connexion
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	if err != nil {
		p.conn.Close()
	}
	return err
}

// LogPublisher logs events when no broker is configured / Journalise les événements sans broker
type LogPublisher struct {
	prefix string
	logger *slog.Logger
}

// NewLogPublisher creates a publisher writing to logger / Crée un publisher qui journalise
func NewLogPublisher(prefix string, logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{prefix: prefix, logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := encode(subject, payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	p.logger.DebugContext(ctx, "domain event", "subject", join(p.prefix, subject), "payload", string(data))
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// MetricsRecorder counts published events / Compte les événements publiés
type MetricsRecorder interface {
	RecordEvent(subject string, ok bool)
}

type instrumented struct {
	ports.EventPublisher
	metrics MetricsRecorder
}

// WithMetrics counts every Publish outcome of pub / Compte le résultat de chaque publication
func WithMetrics(pub ports.EventPublisher, metrics MetricsRecorder) ports.EventPublisher {
	if metrics == nil {
		return pub
	}
	return &instrumented{EventPublisher: pub, metrics: metrics}
}

func (p *instrumented) Publish(ctx context.Context, subject string, payload any) error {
	err := p.EventPublisher.Publish(ctx, subject, payload)
	p.metrics.RecordEvent(subject, err == nil)
	return err
}
