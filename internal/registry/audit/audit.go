// Package audit records identity mutations. Every write path on the
// registry emits one event; where the events land (log, Kafka topic) is a
// deployment choice behind the Publisher port. Emission is best-effort and
// never fails the mutation that produced it.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Action identifies what happened to a gateway record.
type Action string

const (
	ActionCreated      Action = "gateway.created"
	ActionUpdated      Action = "gateway.updated"
	ActionCapsChanged  Action = "gateway.caps_changed"
	ActionDeleted      Action = "gateway.deleted"
	ActionSessionReset Action = "gateway.session_reset"
)

// Event is one audit record.
type Event struct {
	Time        time.Time      `json:"time"`
	Action      Action         `json:"action"`
	GatewayID   int64          `json:"gateway_id"`
	GatewayName string         `json:"gateway_name,omitempty"`
	ActorID     int64          `json:"actor_id,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"`
}

// Publisher accepts audit events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Channel buffers events into an inbox consumed by a worker. Full inbox
// drops the event; audit must not back-pressure mutations.
type Channel struct {
	inbox chan Event
}

var _ Publisher = (*Channel)(nil)

func NewChannel(buffer int) *Channel {
	return &Channel{inbox: make(chan Event, buffer)}
}

func (c *Channel) Publish(ctx context.Context, event Event) error {
	select {
	case c.inbox <- event:
	default:
	}
	return nil
}

// Inbox exposes the event stream for a consuming worker.
func (c *Channel) Inbox() <-chan Event { return c.inbox }

// LogWorker consumes events from a channel publisher and writes them to the
// structured log. It is the default sink when no broker is configured.
type LogWorker struct {
	inbox  <-chan Event
	logger *slog.Logger
}

func NewLogWorker(inbox <-chan Event, logger *slog.Logger) *LogWorker {
	return &LogWorker{inbox: inbox, logger: logger}
}

func (w *LogWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			w.logger.InfoContext(ctx, "audit",
				"action", string(event.Action),
				"gateway_id", event.GatewayID,
				"gateway_name", event.GatewayName,
				"actor_id", event.ActorID,
				"request_id", event.RequestID,
			)
		}
	}
}

// Nop discards events; used by tests that don't assert on audit.
type Nop struct{}

var _ Publisher = Nop{}

func (Nop) Publish(ctx context.Context, event Event) error { return nil }
