// Package generate is the content generator port: it turns a visitor,
// session, and touchpoint prompt into follow-up copy. The actual generation
// happens in an external studio service.
package generate

import "context"

// Request carries everything the generator needs for one follow-up.
type Request struct {
	VisitorName   string `json:"visitor_name"`
	VisitorEmail  string `json:"visitor_email"`
	InterestLevel string `json:"interest_level"`
	VisitorNotes  string `json:"visitor_notes,omitempty"`
	Address       string `json:"address"`
	AgentID       string `json:"agent_id"`
	Prompt        string `json:"prompt"`
	Channel       string `json:"channel"`
}

// Content is the generated follow-up copy.
type Content struct {
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	SMSText   string   `json:"sms_text,omitempty"`
	NextSteps []string `json:"next_steps,omitempty"`
}

// Generator produces follow-up content. Implementations must be safe to
// re-invoke with the same request; a failed generation is always retried.
type Generator interface {
	GenerateFollowUp(ctx context.Context, req Request) (*Content, error)
}
