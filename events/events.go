// Package events publishes pipeline progress to NATS. Publishing is
// fire-and-forget and entirely optional: a nil Publisher is a no-op, so the
// pipeline never depends on a broker being reachable.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event types emitted over the pipeline's lifetime.
const (
	TypeRunStarted   = "run.started"
	TypeAttemptDone  = "attempt.done"
	TypeRunAccepted  = "run.accepted"
	TypeRunExhausted = "run.exhausted"
	TypeRunFailed    = "run.failed"
)

// Event is one pipeline progress notification.
type Event struct {
	Type        string    `json:"type"`
	RunID       string    `json:"run_id"`
	Language    string    `json:"language,omitempty"`
	Attempt     int       `json:"attempt,omitempty"`
	Passed      bool      `json:"passed,omitempty"`
	Diagnostics int       `json:"diagnostics,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher emits events to one NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// Connect dials NATS and returns a publisher. An empty URL returns nil,
// which disables publishing.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("omegacode"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, subject: subject, logger: logger}, nil
}

// Publish emits one event. Failures are logged, never propagated: events
// are advisory and must not affect the pipeline outcome.
func (p *Publisher) Publish(ev Event) {
	if p == nil || p.conn == nil {
		return
	}

	ev.Timestamp = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("event marshal failed", slog.String("type", ev.Type), slog.String("error", err.Error()))
		return
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Warn("event publish failed", slog.String("type", ev.Type), slog.String("error", err.Error()))
	}
}

// Close drains the connection. Safe on nil.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
