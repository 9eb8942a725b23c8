package visitor

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jredmond/openhouse/internal/fault"
	"github.com/jredmond/openhouse/internal/notify"
	"github.com/jredmond/openhouse/internal/session"
)

// Service owns visitor check-in and mutation.
type Service struct {
	repo     *Repository
	sessions *session.Repository
	enroller Enroller
	events   notify.Sink
}

// NewService creates a visitor service. enroller may be nil when automatic
// follow-up enrollment is disabled.
func NewService(repo *Repository, sessions *session.Repository, enroller Enroller, events notify.Sink) *Service {
	return &Service{repo: repo, sessions: sessions, enroller: enroller, events: events}
}

// CheckIn records a visitor against an active session, keeping the session
// aggregates consistent, then best-effort enrolls them in a follow-up
// sequence. Enrollment failure is logged, never surfaced.
func (s *Service) CheckIn(sessionID string, in CheckInInput) (*Visitor, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fault.New(fault.KindInvalid, "name is required")
	}
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fault.New(fault.KindInvalid, "a valid email is required")
	}
	if !session.ValidInterest(in.InterestLevel) {
		return nil, fault.New(fault.KindInvalid, "interest_level must be low, medium, or high")
	}

	sess, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusActive {
		return nil, fault.New(fault.KindSessionNotActive,
			"session %s is %s, not active", sessionID, sess.Status)
	}

	exists, err := s.repo.EmailExists(sessionID, email, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fault.New(fault.KindDuplicate,
			"visitor with email %s already checked into session %s", email, sessionID)
	}

	now := time.Now().UTC()
	v := &Visitor{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		Name:          strings.TrimSpace(in.Name),
		Email:         email,
		Phone:         strings.TrimSpace(in.Phone),
		InterestLevel: session.InterestLevel(in.InterestLevel),
		CheckInTime:   now,
		Source:        in.Source,
	}
	if in.Notes != "" {
		v.Notes = "[" + now.Format(time.RFC3339) + "] " + in.Notes
	}

	if err := s.repo.Create(v, sess.Version); err != nil {
		return nil, err
	}

	stored, err := s.repo.GetByID(v.ID)
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(notify.Event{
		Type:      notify.EventVisitorCheckedIn,
		SessionID: sessionID,
		Payload: map[string]interface{}{
			"visitor_id":     stored.ID,
			"name":           stored.Name,
			"interest_level": stored.InterestLevel,
		},
		Timestamp: now,
	})

	if s.enroller != nil {
		if _, err := s.enroller.EnrollOnCheckIn(stored); err != nil {
			slog.Warn("auto-enrollment failed",
				"visitor_id", stored.ID,
				"session_id", sessionID,
				"error", err,
			)
		}
	}

	return s.repo.GetByID(v.ID)
}

// Get returns a visitor by ID.
func (s *Service) Get(id string) (*Visitor, error) {
	return s.repo.GetByID(id)
}

// ListBySession returns a session's visitors after verifying the session.
func (s *Service) ListBySession(sessionID string) ([]*Visitor, error) {
	if _, err := s.sessions.GetByID(sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListBySession(sessionID)
}

// Update applies partial field changes. Interest changes move the session
// aggregates in the same logical step; email changes are re-deduped against
// everyone but the visitor's own record.
func (s *Service) Update(id string, in UpdateInput) (*Visitor, error) {
	v, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	oldInterest := v.InterestLevel

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, fault.New(fault.KindInvalid, "name cannot be empty")
		}
		v.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, fault.New(fault.KindInvalid, "a valid email is required")
		}
		exists, err := s.repo.EmailExists(v.SessionID, email, v.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fault.New(fault.KindDuplicate,
				"visitor with email %s already checked into session %s", email, v.SessionID)
		}
		v.Email = email
	}
	if in.Phone != nil {
		v.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.InterestLevel != nil {
		if !session.ValidInterest(*in.InterestLevel) {
			return nil, fault.New(fault.KindInvalid, "interest_level must be low, medium, or high")
		}
		v.InterestLevel = session.InterestLevel(*in.InterestLevel)
	}

	if err := s.repo.Update(v, oldInterest); err != nil {
		return nil, err
	}

	return s.repo.GetByID(id)
}

// Delete removes a visitor, reversing their aggregate contribution.
func (s *Service) Delete(id string) error {
	return s.repo.Delete(id)
}

// AppendNotes adds a timestamped line to the visitor's note log.
func (s *Service) AppendNotes(id, text string) (*Visitor, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fault.New(fault.KindInvalid, "note text is required")
	}
	if utf8.RuneCountInString(text) > maxNoteLength {
		return nil, fault.New(fault.KindInvalid,
			"note text exceeds %d characters", maxNoteLength)
	}

	if err := s.repo.AppendNotes(id, text, time.Now()); err != nil {
		return nil, err
	}

	return s.repo.GetByID(id)
}
