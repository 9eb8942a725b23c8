// Package notify provides outbound delivery: lifecycle events to a webhook
// sink, follow-up email over SMTP, and the SMS hand-off. Everything here is
// best-effort from the caller's perspective; delivery failure never rolls
// back a core state change.
package notify

import (
	"log/slog"
	"time"
)

// Event is a structured lifecycle notification.
type Event struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Event types emitted by the core services.
const (
	EventSessionStarted   = "session.started"
	EventSessionEnded     = "session.ended"
	EventVisitorCheckedIn = "visitor.checked_in"
)

// Sink receives lifecycle events. Implementations log and swallow their own
// failures.
type Sink interface {
	Dispatch(e Event)
}

// LogSink writes events to the structured log only. Used when no webhook
// URL is configured.
type LogSink struct{}

// Dispatch logs the event.
func (LogSink) Dispatch(e Event) {
	slog.Info("event", "type", e.Type, "session_id", e.SessionID)
}
