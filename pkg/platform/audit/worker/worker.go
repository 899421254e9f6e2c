package worker

import (
	"context"
	"log/slog"

	audit "anchorcred/pkg/platform/audit"
)

// Sink receives events drained by the worker.
type Sink interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Worker drains audit events from a channel into a sink so request paths do
// not block on the broker.
type Worker struct {
	sink   Sink
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run forwards events until ctx is done or the inbox is closed. Sink failures
// are logged and the event is dropped.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.sink.Emit(ctx, event); err != nil && w.logger != nil {
				w.logger.WarnContext(ctx, "failed to forward audit event",
					"action", event.Action,
					"credential_id", event.CredentialID,
					"error", err,
				)
			}
		}
	}
}

// ChannelPublisher enqueues events for a Worker without blocking. When the
// buffer is full the event is handed to the drop callback instead.
type ChannelPublisher struct {
	ch      chan audit.Event
	dropped func(audit.Event)
}

// NewChannelPublisher returns a publisher and the inbox a Worker should drain.
func NewChannelPublisher(capacity int, onDrop func(audit.Event)) (*ChannelPublisher, <-chan audit.Event) {
	if capacity <= 0 {
		capacity = 1024
	}
	ch := make(chan audit.Event, capacity)
	return &ChannelPublisher{ch: ch, dropped: onDrop}, ch
}

func (p *ChannelPublisher) Emit(_ context.Context, event audit.Event) error {
	select {
	case p.ch <- event:
	default:
		if p.dropped != nil {
			p.dropped(event)
		}
	}
	return nil
}

// Close stops accepting events; the worker exits after draining.
func (p *ChannelPublisher) Close() {
	close(p.ch)
}
