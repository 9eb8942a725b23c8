// Package session provides the open house session domain model, data access,
// and the lifecycle state machine.
package session

import "time"

// Status represents where a session is in its lifecycle.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ValidStatus returns true if s is a known session status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusScheduled, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// InterestLevel is the three-bucket classification of a visitor's buying
// interest. It lives here because the session aggregate is keyed by it.
type InterestLevel string

const (
	InterestLow    InterestLevel = "low"
	InterestMedium InterestLevel = "medium"
	InterestHigh   InterestLevel = "high"
)

// ValidInterest returns true if s is a known interest level.
func ValidInterest(s string) bool {
	switch InterestLevel(s) {
	case InterestLow, InterestMedium, InterestHigh:
		return true
	}
	return false
}

// Session represents a scheduled, time-bounded open house event.
type Session struct {
	ID             string     `json:"id"`
	AgentID        string     `json:"agent_id"`
	Address        string     `json:"address"`
	ScheduledStart time.Time  `json:"scheduled_start"`
	ScheduledEnd   time.Time  `json:"scheduled_end"`
	Status         Status     `json:"status"`
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`
	VisitorCount   int        `json:"visitor_count"`
	InterestLow    int        `json:"interest_low"`
	InterestMedium int        `json:"interest_medium"`
	InterestHigh   int        `json:"interest_high"`
	Version        int64      `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Distribution returns the interest buckets keyed by level.
func (s *Session) Distribution() map[InterestLevel]int {
	return map[InterestLevel]int{
		InterestLow:    s.InterestLow,
		InterestMedium: s.InterestMedium,
		InterestHigh:   s.InterestHigh,
	}
}

// AggregatesConsistent reports whether the bucket sum matches visitor_count.
func (s *Session) AggregatesConsistent() bool {
	return s.InterestLow+s.InterestMedium+s.InterestHigh == s.VisitorCount
}
