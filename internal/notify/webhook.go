package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookSink posts events as JSON to an external notification dispatcher.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSink creates a webhook sink for the given URL.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Dispatch posts the event. Failures are logged and swallowed; event
// delivery must never affect the state change that produced the event.
func (s *WebhookSink) Dispatch(e Event) {
	if err := s.post(e); err != nil {
		slog.Warn("webhook dispatch failed",
			"type", e.Type,
			"session_id", e.SessionID,
			"error", err,
		)
	}
}

func (s *WebhookSink) post(e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	resp, err := s.httpClient.Post(s.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting event: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = fmt.Errorf("closing body: %w", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, msg)
	}

	return nil
}
