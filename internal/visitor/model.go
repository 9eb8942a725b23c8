// Package visitor provides visitor check-in, the per-session email dedupe,
// and maintenance of the owning session's interest aggregates.
package visitor

import (
	"time"

	"github.com/jredmond/openhouse/internal/session"
)

const maxNoteLength = 1000

// Visitor represents an attendee who checked into a session.
type Visitor struct {
	ID                string                `json:"id"`
	SessionID         string                `json:"session_id"`
	Name              string                `json:"name"`
	Email             string                `json:"email"`
	Phone             string                `json:"phone,omitempty"`
	InterestLevel     session.InterestLevel `json:"interest_level"`
	CheckInTime       time.Time             `json:"checkin_time"`
	Notes             string                `json:"notes,omitempty"`
	Source            string                `json:"source,omitempty"`
	FollowUpGenerated bool                  `json:"followup_generated"`
	FollowUpSent      bool                  `json:"followup_sent"`
	EnrollmentID      *string               `json:"enrollment_id,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// CheckInInput holds the fields for checking in a visitor.
type CheckInInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	InterestLevel string `json:"interest_level"`
	Notes         string `json:"notes"`
	Source        string `json:"source"`
}

// UpdateInput holds optional fields for updating a visitor. Nil means leave
// unchanged.
type UpdateInput struct {
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	InterestLevel *string `json:"interest_level"`
}

// Enroller starts follow-up sequence enrollment for a freshly checked-in
// visitor. Implemented by the enrollment service; wired in at startup.
type Enroller interface {
	// EnrollOnCheckIn selects a sequence for the visitor and enrolls them.
	// Returns the enrollment ID, or "" when no sequence matched.
	EnrollOnCheckIn(v *Visitor) (string, error)
}
