package notify

import (
	"log/slog"

	"github.com/google/uuid"
)

// SMSSender delivers a follow-up text message and returns a message ID.
// The actual SMS gateway sits outside this system.
type SMSSender interface {
	SendSMS(to, text string) (string, error)
}

// LogSMS records the outbound SMS in the structured log. It stands in for
// the external gateway in local and test setups.
type LogSMS struct{}

// SendSMS logs the message and returns a generated ID.
func (LogSMS) SendSMS(to, text string) (string, error) {
	id := uuid.NewString()
	slog.Info("sms queued", "to", to, "message_id", id, "chars", len(text))
	return id, nil
}
