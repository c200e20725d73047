// Package events publishes event-log entries.
//
// Entries are published to NATS on
//
//	{prefix}.{event_key}
//
// where event_key is the event name reduced to [a-z0-9_], e.g.
// "docledger.events.added_document_s_to_workspace". Publishing is
// fire-and-forget: failures are logged and never reach the caller.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/docledger/internal/sanitize"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event names recorded by the document orchestrators.
const (
	DocumentsAdded   = "Added document(s) to workspace"
	DocumentsRemoved = "Removed document(s) from workspace"
	OrphanVector     = "orphan_vector"
	WorkspaceCreated = "Workspace created"
)

// Entry is the published message body.
type Entry struct {
	Event      string         `json:"event"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ActorID    string         `json:"actorId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Sink records event-log entries.
type Sink interface {
	Record(ctx context.Context, event string, metadata map[string]any, actorID string)
}

// Nop discards every entry.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(context.Context, string, map[string]any, string) {}

// Subject returns the NATS subject for event under prefix.
func Subject(prefix, event string) string {
	return prefix + "." + sanitize.Identifier(event)
}

// NATSSink publishes entries on a NATS connection.
type NATSSink struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

var _ Sink = (*NATSSink)(nil)

// NewNATSSink publishes on nc under prefix. The sink does not own nc.
func NewNATSSink(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSSink{
		nc:     nc,
		prefix: prefix,
		logger: logger.Named("events"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Connect dials url with reconnect options suited to a long-running service.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("docledger"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Record implements Sink.
func (s *NATSSink) Record(_ context.Context, event string, metadata map[string]any, actorID string) {
	data, err := json.Marshal(Entry{
		Event:      event,
		Metadata:   metadata,
		ActorID:    actorID,
		OccurredAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	subject := Subject(s.prefix, event)
	if err := s.nc.Publish(subject, data); err != nil {
		s.logger.Warn("publish event", zap.String("subject", subject), zap.Error(err))
	}
}
