// Package publisher stamps audit events with request metadata and hands them
// to a sink. Compliance events fail closed; everything else is best effort.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	audit "anchorcred/pkg/platform/audit"
	"anchorcred/pkg/platform/middleware/metadata"
	"anchorcred/pkg/requestcontext"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sink is the downstream of the publisher: an in-memory store, a worker
// channel, or a broker.
type Sink interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Metrics struct {
	emitted *prometheus.CounterVec
	failed  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		emitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorcred_audit_events_emitted_total",
			Help: "Audit events handed to the sink, by category",
		}, []string{"category"}),
		failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorcred_audit_events_failed_total",
			Help: "Audit events the sink rejected, by category",
		}, []string{"category"}),
	}
}

func (m *Metrics) incEmitted(c audit.EventCategory) {
	if m != nil {
		m.emitted.WithLabelValues(string(c)).Inc()
	}
}

func (m *Metrics) incFailed(c audit.EventCategory) {
	if m != nil {
		m.failed.WithLabelValues(string(c)).Inc()
	}
}

type Publisher struct {
	sink    Sink
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills id, timestamp, category and request metadata, then forwards the
// event. Only compliance events return the sink error to the caller.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires an action")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Client == "" {
		event.Client = metadata.ClientSummary(requestcontext.UserAgent(ctx))
	}

	if err := p.sink.Emit(ctx, event); err != nil {
		p.metrics.incFailed(event.Category)
		if event.Category == audit.CategoryCompliance {
			if p.logger != nil {
				p.logger.ErrorContext(ctx, "compliance audit failed",
					"action", event.Action,
					"credential_id", event.CredentialID,
					"error", err,
				)
			}
			return fmt.Errorf("compliance audit persistence failed: %w", err)
		}
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit event dropped",
				"action", event.Action,
				"credential_id", event.CredentialID,
				"error", err,
			)
		}
		return nil
	}
	p.metrics.incEmitted(event.Category)
	return nil
}
