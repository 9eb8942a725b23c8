package sequence

import (
	"strings"

	"github.com/google/uuid"

	"github.com/jredmond/openhouse/internal/fault"
	"github.com/jredmond/openhouse/internal/session"
)

// Service owns the sequence catalog.
type Service struct {
	repo *Repository
}

// NewService creates a sequence service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and stores a new sequence.
func (s *Service) Create(in Input) (*Sequence, error) {
	seq, err := buildSequence(uuid.NewString(), in)
	if err != nil {
		return nil, err
	}
	return s.repo.Insert(seq)
}

// Update replaces a sequence wholesale. Edits are refused while
// non-completed enrollments reference the sequence, so in-flight follow-up
// schedules never change retroactively.
func (s *Service) Update(id string, in Input) (*Sequence, error) {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.ActiveEnrollmentCount(id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fault.New(fault.KindPrecondition,
			"sequence %s has %d enrollments in flight; deactivate and wait for completion", id, count)
	}

	if in.AgentID == "" {
		in.AgentID = existing.AgentID
	}

	seq, err := buildSequence(id, in)
	if err != nil {
		return nil, err
	}
	return s.repo.Replace(seq)
}

// Get returns a sequence by ID.
func (s *Service) Get(id string) (*Sequence, error) {
	return s.repo.GetByID(id)
}

// List returns an agent's sequences.
func (s *Service) List(agentID string) ([]*Sequence, error) {
	return s.repo.List(agentID)
}

// SetActive toggles whether a sequence is eligible for selection.
func (s *Service) SetActive(id string, active bool) (*Sequence, error) {
	if err := s.repo.SetActive(id, active); err != nil {
		return nil, err
	}
	return s.repo.GetByID(id)
}

// Delete removes a sequence. Like Update, it is refused while enrollments
// are in flight.
func (s *Service) Delete(id string) error {
	if _, err := s.repo.GetByID(id); err != nil {
		return err
	}

	count, err := s.repo.ActiveEnrollmentCount(id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fault.New(fault.KindPrecondition,
			"sequence %s has %d enrollments in flight", id, count)
	}

	return s.repo.Delete(id)
}

// SelectForInterest runs the check-in selection policy.
func (s *Service) SelectForInterest(agentID string, level session.InterestLevel) (*Sequence, error) {
	return s.repo.SelectForInterest(agentID, level)
}

func buildSequence(id string, in Input) (*Sequence, error) {
	if strings.TrimSpace(in.AgentID) == "" {
		return nil, fault.New(fault.KindInvalid, "agent_id is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fault.New(fault.KindInvalid, "name is required")
	}
	if !ValidTarget(in.Target) {
		return nil, fault.New(fault.KindInvalid,
			"target_interest must be low, medium, high, or all")
	}
	if len(in.Touchpoints) == 0 {
		return nil, fault.New(fault.KindInvalid, "at least one touchpoint is required")
	}

	seq := &Sequence{
		ID:      id,
		AgentID: in.AgentID,
		Name:    strings.TrimSpace(in.Name),
		Target:  TargetInterest(in.Target),
		Active:  true,
	}
	if in.Active != nil {
		seq.Active = *in.Active
	}

	for i, tp := range in.Touchpoints {
		if tp.DelayMinutes < 0 {
			return nil, fault.New(fault.KindInvalid,
				"touchpoint %d: delay_minutes must be >= 0", i)
		}
		if !ValidChannel(tp.Channel) {
			return nil, fault.New(fault.KindInvalid,
				"touchpoint %d: channel must be email or sms", i)
		}
		seq.Touchpoints = append(seq.Touchpoints, Touchpoint{
			Position:       i,
			DelayMinutes:   tp.DelayMinutes,
			Channel:        Channel(tp.Channel),
			TemplatePrompt: tp.TemplatePrompt,
		})
	}

	return seq, nil
}
