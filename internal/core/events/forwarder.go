package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the slice of *nats.Conn the forwarder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Forwarder relays bus events to NATS subjects named <prefix>.<event type>.
type Forwarder struct {
	publisher Publisher
	prefix    string
	logger    *slog.Logger
}

func NewForwarder(publisher Publisher, prefix string, logger *slog.Logger) *Forwarder {
	if prefix == "" {
		prefix = "procurement"
	}
	return &Forwarder{publisher: publisher, prefix: prefix, logger: logger}
}

func (f *Forwarder) Subject(eventType string) string {
	return f.prefix + "." + eventType
}

func (f *Forwarder) Handle(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.EventID(), err)
	}
	subject := f.Subject(event.EventType())
	if err := f.publisher.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	f.logger.DebugContext(ctx, "event forwarded", "subject", subject, "event_id", event.EventID())
	return nil
}

// Register subscribes the forwarder to the given event types.
func (f *Forwarder) Register(bus *EventBus, eventTypes ...string) {
	for _, t := range eventTypes {
		bus.Subscribe(t, f.Handle)
	}
}

// ConnectNATS dials the broker with reconnects enabled.
func ConnectNATS(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
}

// AuditLogger writes one log line per lifecycle event.
func AuditLogger(logger *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		attrs := []any{"event_type", event.EventType(), "event_id", event.EventID()}
		if re, ok := event.(*RequestEvent); ok {
			attrs = append(attrs, "request_id", re.RequestID, "status", re.Status, "actor", re.Actor)
		}
		logger.InfoContext(ctx, "request lifecycle event", attrs...)
		return nil
	}
}
