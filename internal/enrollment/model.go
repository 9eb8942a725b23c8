// Package enrollment binds visitors to follow-up sequences and drives the
// pull-based touchpoint scheduler.
package enrollment

import "time"

// Enrollment tracks one visitor's progress through one sequence.
type Enrollment struct {
	ID               string     `json:"id"`
	SequenceID       string     `json:"sequence_id"`
	VisitorID        string     `json:"visitor_id"`
	SessionID        string     `json:"session_id"`
	CurrentIndex     int        `json:"current_index"`
	NextTouchpointAt *time.Time `json:"next_touchpoint_at,omitempty"`
	Paused           bool       `json:"paused"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Version          int64      `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Completed reports whether the enrollment has run out of touchpoints.
func (e *Enrollment) Completed() bool {
	return e.CompletedAt != nil
}

// Due reports whether the enrollment has work ready at the given instant.
func (e *Enrollment) Due(now time.Time) bool {
	return !e.Paused && !e.Completed() &&
		e.NextTouchpointAt != nil && !e.NextTouchpointAt.After(now)
}
