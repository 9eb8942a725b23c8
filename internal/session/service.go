package session

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jredmond/openhouse/internal/auth"
	"github.com/jredmond/openhouse/internal/fault"
	"github.com/jredmond/openhouse/internal/notify"
)

// Service owns session lifecycle transitions.
type Service struct {
	repo    *Repository
	tokens  *auth.TokenStore
	events  notify.Sink
	baseURL string
}

// NewService creates a session service.
func NewService(repo *Repository, tokens *auth.TokenStore, events notify.Sink, baseURL string) *Service {
	return &Service{repo: repo, tokens: tokens, events: events, baseURL: baseURL}
}

// CreateInput holds the fields for creating a session.
type CreateInput struct {
	AgentID        string    `json:"agent_id"`
	Address        string    `json:"address"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
}

// Created pairs a new session with its check-in access artifacts.
type Created struct {
	Session      *Session `json:"session"`
	CheckinToken string   `json:"checkin_token"`
	QRPayload    string   `json:"qr_payload"`
}

// Create validates input, stores a scheduled session with zeroed aggregates,
// and generates its check-in token and QR payload.
func (s *Service) Create(in CreateInput) (*Created, error) {
	if strings.TrimSpace(in.AgentID) == "" {
		return nil, fault.New(fault.KindInvalid, "agent_id is required")
	}
	if strings.TrimSpace(in.Address) == "" {
		return nil, fault.New(fault.KindInvalid, "address is required")
	}
	if in.ScheduledStart.IsZero() || in.ScheduledEnd.IsZero() {
		return nil, fault.New(fault.KindInvalid, "scheduled_start and scheduled_end are required")
	}
	if !in.ScheduledEnd.After(in.ScheduledStart) {
		return nil, fault.New(fault.KindInvalid, "scheduled_end must be after scheduled_start")
	}

	sess := &Session{
		ID:             uuid.NewString(),
		AgentID:        in.AgentID,
		Address:        in.Address,
		ScheduledStart: in.ScheduledStart.UTC(),
		ScheduledEnd:   in.ScheduledEnd.UTC(),
		Status:         StatusScheduled,
	}

	stored, err := s.repo.Insert(sess)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Create(stored.ID)
	if err != nil {
		return nil, err
	}

	return &Created{
		Session:      stored,
		CheckinToken: token,
		QRPayload:    auth.QRPayload(s.baseURL, token),
	}, nil
}

// Get returns a session by ID.
func (s *Service) Get(id string) (*Session, error) {
	return s.repo.GetByID(id)
}

// List returns sessions, optionally filtered by status.
func (s *Service) List(opts ListOptions) ([]*Session, error) {
	return s.repo.List(opts)
}

// Start moves a scheduled session to active and stamps the actual start
// time. StartEarly is the same operation under a different caller intent.
func (s *Service) Start(id string) (*Session, error) {
	sess, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if sess.Status != StatusScheduled {
		return nil, fault.New(fault.KindInvalidTransition,
			"cannot start session in status %s", sess.Status)
	}

	now := time.Now().UTC()
	if err := s.repo.Transition(id, sess.Version, StatusActive, &now, nil); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(notify.Event{
		Type:      notify.EventSessionStarted,
		SessionID: updated.ID,
		Payload: map[string]interface{}{
			"address":         updated.Address,
			"scheduled_start": updated.ScheduledStart,
			"scheduled_end":   updated.ScheduledEnd,
			"actual_start":    updated.ActualStart,
		},
		Timestamp: now,
	})

	return updated, nil
}

// StartEarly starts a session ahead of its scheduled time.
func (s *Service) StartEarly(id string) (*Session, error) {
	return s.Start(id)
}

// End moves an active session to completed, stamps the actual end time, and
// returns the elapsed duration in whole minutes.
func (s *Service) End(id string) (*Session, int, error) {
	sess, err := s.repo.GetByID(id)
	if err != nil {
		return nil, 0, err
	}

	if sess.Status != StatusActive {
		return nil, 0, fault.New(fault.KindInvalidTransition,
			"cannot end session in status %s", sess.Status)
	}
	if sess.ActualStart == nil {
		return nil, 0, fault.New(fault.KindPrecondition,
			"session %s has no recorded start time", id)
	}

	now := time.Now().UTC()
	if err := s.repo.Transition(id, sess.Version, StatusCompleted, nil, &now); err != nil {
		return nil, 0, err
	}

	updated, err := s.repo.GetByID(id)
	if err != nil {
		return nil, 0, err
	}

	minutes := int(math.Round(now.Sub(*sess.ActualStart).Minutes()))

	s.events.Dispatch(notify.Event{
		Type:      notify.EventSessionEnded,
		SessionID: updated.ID,
		Payload: map[string]interface{}{
			"address":          updated.Address,
			"actual_start":     updated.ActualStart,
			"actual_end":       updated.ActualEnd,
			"duration_minutes": minutes,
			"visitor_count":    updated.VisitorCount,
			"interest_distribution": map[string]int{
				"low":    updated.InterestLow,
				"medium": updated.InterestMedium,
				"high":   updated.InterestHigh,
			},
		},
		Timestamp: now,
	})

	return updated, minutes, nil
}

// Cancel moves a scheduled or active session to cancelled, preserving all
// accumulated data.
func (s *Service) Cancel(id string) (*Session, error) {
	sess, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	switch sess.Status {
	case StatusCancelled:
		return nil, fault.New(fault.KindAlreadyInState, "session %s is already cancelled", id)
	case StatusCompleted:
		return nil, fault.New(fault.KindInvalidTransition, "cannot cancel a completed session")
	}

	if err := s.repo.Transition(id, sess.Version, StatusCancelled, nil, nil); err != nil {
		return nil, err
	}

	return s.repo.GetByID(id)
}

// Delete permanently removes a session and its derived access artifacts.
// Active sessions cannot be deleted.
func (s *Service) Delete(id string) error {
	sess, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}

	if sess.Status == StatusActive {
		return fault.New(fault.KindPrecondition, "cannot delete an active session")
	}

	return s.repo.Delete(id)
}
