// Package sequence provides the follow-up sequence catalog and the policy
// that selects a sequence for a newly checked-in visitor.
package sequence

import (
	"time"

	"github.com/jredmond/openhouse/internal/session"
)

// Channel is the delivery channel of a touchpoint.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ValidChannel returns true if s is a known channel.
func ValidChannel(s string) bool {
	switch Channel(s) {
	case ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

// TargetInterest selects which visitors a sequence applies to.
type TargetInterest string

const (
	TargetLow    TargetInterest = "low"
	TargetMedium TargetInterest = "medium"
	TargetHigh   TargetInterest = "high"
	TargetAll    TargetInterest = "all"
)

// ValidTarget returns true if s is a known target selector.
func ValidTarget(s string) bool {
	switch TargetInterest(s) {
	case TargetLow, TargetMedium, TargetHigh, TargetAll:
		return true
	}
	return false
}

// Matches reports whether the selector covers the given interest level.
func (t TargetInterest) Matches(level session.InterestLevel) bool {
	return t == TargetAll || string(t) == string(level)
}

// Touchpoint is one step in a sequence: a delay, a channel, and the content
// instruction handed to the generator.
type Touchpoint struct {
	Position       int     `json:"position"`
	DelayMinutes   int     `json:"delay_minutes"`
	Channel        Channel `json:"channel"`
	TemplatePrompt string  `json:"template_prompt"`
}

// Delay returns the touchpoint's delay as a duration.
func (t Touchpoint) Delay() time.Duration {
	return time.Duration(t.DelayMinutes) * time.Minute
}

// Sequence is a named, ordered list of delayed follow-up touchpoints.
type Sequence struct {
	ID          string         `json:"id"`
	AgentID     string         `json:"agent_id"`
	Name        string         `json:"name"`
	Target      TargetInterest `json:"target_interest"`
	Active      bool           `json:"active"`
	Touchpoints []Touchpoint   `json:"touchpoints"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Input holds the fields for creating or replacing a sequence. Updates
// replace the touchpoint list wholesale; there is no step-level diffing.
type Input struct {
	AgentID     string            `json:"agent_id"`
	Name        string            `json:"name"`
	Target      string            `json:"target_interest"`
	Active      *bool             `json:"active"`
	Touchpoints []TouchpointInput `json:"touchpoints"`
}

// TouchpointInput holds one touchpoint's fields.
type TouchpointInput struct {
	DelayMinutes   int    `json:"delay_minutes"`
	Channel        string `json:"channel"`
	TemplatePrompt string `json:"template_prompt"`
}
