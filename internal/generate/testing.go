package generate

import (
	"context"
	"fmt"
)

// Stub is a deterministic generator for tests and offline runs.
type Stub struct {
	// Err, when set, is returned from every call.
	Err error
}

// GenerateFollowUp returns templated content derived from the request.
func (s *Stub) GenerateFollowUp(_ context.Context, req Request) (*Content, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return &Content{
		Subject: fmt.Sprintf("Thanks for visiting %s", req.Address),
		Body: fmt.Sprintf("<p>Hi %s,</p><p>Great meeting you at %s. %s</p>",
			req.VisitorName, req.Address, req.Prompt),
		SMSText:   fmt.Sprintf("Hi %s, thanks for stopping by %s!", req.VisitorName, req.Address),
		NextSteps: []string{"reply to schedule a private showing"},
	}, nil
}
