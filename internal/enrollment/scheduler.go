package enrollment

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jredmond/openhouse/internal/fault"
	"github.com/jredmond/openhouse/internal/generate"
	"github.com/jredmond/openhouse/internal/notify"
	"github.com/jredmond/openhouse/internal/sequence"
	"github.com/jredmond/openhouse/internal/session"
	"github.com/jredmond/openhouse/internal/visitor"
)

// Service owns enrollment and touchpoint execution. There is no resident
// timer; "time passing" is observed when a caller (cron, CLI dispatch)
// invokes ListDue and Execute. The safe poll interval is therefore bounded
// by the smallest delay configured across active sequences.
type Service struct {
	repo      *Repository
	sequences *sequence.Repository
	visitors  *visitor.Repository
	sessions  *session.Repository
	gen       generate.Generator
	mailer    notify.Mailer
	sms       notify.SMSSender
}

// NewService creates an enrollment service. mailer may be nil when SMTP is
// not configured; email touchpoints then generate content but skip delivery.
func NewService(
	repo *Repository,
	sequences *sequence.Repository,
	visitors *visitor.Repository,
	sessions *session.Repository,
	gen generate.Generator,
	mailer notify.Mailer,
	sms notify.SMSSender,
) *Service {
	return &Service{
		repo:      repo,
		sequences: sequences,
		visitors:  visitors,
		sessions:  sessions,
		gen:       gen,
		mailer:    mailer,
		sms:       sms,
	}
}

// Enroll binds a visitor to a sequence and schedules its first touchpoint
// from now.
func (s *Service) Enroll(visitorID, sessionID, sequenceID string) (*Enrollment, error) {
	seq, err := s.sequences.GetByID(sequenceID)
	if err != nil {
		return nil, err
	}
	if !seq.Active {
		return nil, fault.New(fault.KindSequenceInactive, "sequence %s is inactive", sequenceID)
	}
	if len(seq.Touchpoints) == 0 {
		return nil, fault.New(fault.KindInvalid, "sequence %s has no touchpoints", sequenceID)
	}

	if _, err := s.visitors.GetByID(visitorID); err != nil {
		return nil, err
	}
	if _, err := s.sessions.GetByID(sessionID); err != nil {
		return nil, err
	}

	exists, err := s.repo.ActiveExists(visitorID, sequenceID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fault.New(fault.KindAlreadyEnrolled,
			"visitor %s is already enrolled in sequence %s", visitorID, sequenceID)
	}

	nextAt := time.Now().UTC().Add(seq.Touchpoints[0].Delay())
	e := &Enrollment{
		ID:               uuid.NewString(),
		SequenceID:       sequenceID,
		VisitorID:        visitorID,
		SessionID:        sessionID,
		CurrentIndex:     0,
		NextTouchpointAt: &nextAt,
	}

	if err := s.repo.Create(e); err != nil {
		return nil, err
	}

	return s.repo.GetByID(e.ID)
}

// EnrollOnCheckIn implements visitor.Enroller: it runs the selection policy
// for the visitor's interest level and enrolls them in the chosen sequence.
// Returns "" when no active sequence matches.
func (s *Service) EnrollOnCheckIn(v *visitor.Visitor) (string, error) {
	sess, err := s.sessions.GetByID(v.SessionID)
	if err != nil {
		return "", err
	}

	seq, err := s.sequences.SelectForInterest(sess.AgentID, v.InterestLevel)
	if err != nil {
		return "", err
	}
	if seq == nil {
		return "", nil
	}

	e, err := s.Enroll(v.ID, v.SessionID, seq.ID)
	if err != nil {
		return "", err
	}

	slog.Info("visitor auto-enrolled",
		"visitor_id", v.ID,
		"sequence_id", seq.ID,
		"enrollment_id", e.ID,
	)

	return e.ID, nil
}

// Get returns an enrollment by ID.
func (s *Service) Get(id string) (*Enrollment, error) {
	return s.repo.GetByID(id)
}

// ListDue returns enrollments with touchpoints ready to execute.
func (s *Service) ListDue(now time.Time, limit int) ([]*Enrollment, error) {
	return s.repo.ListDue(now, limit)
}

// ListBySession returns a session's enrollments.
func (s *Service) ListBySession(sessionID string) ([]*Enrollment, error) {
	return s.repo.ListBySession(sessionID)
}

// Pause removes an enrollment from due-work scans. The scheduled time is
// kept, so a resume restores eligibility without rescheduling.
func (s *Service) Pause(id string) (*Enrollment, error) {
	return s.setPaused(id, true)
}

// Resume re-enables due-work eligibility.
func (s *Service) Resume(id string) (*Enrollment, error) {
	return s.setPaused(id, false)
}

func (s *Service) setPaused(id string, paused bool) (*Enrollment, error) {
	e, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if e.Completed() {
		return nil, fault.New(fault.KindPrecondition, "enrollment %s is completed", id)
	}

	if err := s.repo.SetPaused(id, paused); err != nil {
		return nil, err
	}

	return s.repo.GetByID(id)
}

// ExecuteResult reports what one touchpoint execution did.
type ExecuteResult struct {
	Enrollment *Enrollment         `json:"enrollment"`
	Touchpoint sequence.Touchpoint `json:"touchpoint"`
	Content    *generate.Content   `json:"content"`
	Delivered  bool                `json:"delivered"`
	MessageID  string              `json:"message_id,omitempty"`
	Completed  bool                `json:"completed"`
}

// Execute runs the enrollment's current touchpoint: generate content,
// deliver on the touchpoint's channel, then advance. Generation failure
// leaves the enrollment untouched and is safe to retry. Delivery is not
// atomically coupled to advancement; a delivery failure is logged and the
// enrollment still advances, mirroring the at-most-once posture of the
// rest of the pipeline.
func (s *Service) Execute(ctx context.Context, id string) (*ExecuteResult, error) {
	e, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if e.Paused {
		return nil, fault.New(fault.KindPrecondition, "enrollment %s is paused", id)
	}
	if e.Completed() {
		return nil, fault.New(fault.KindPrecondition, "enrollment %s is already completed", id)
	}

	seq, err := s.sequences.GetByID(e.SequenceID)
	if err != nil {
		return nil, err
	}
	if e.CurrentIndex >= len(seq.Touchpoints) {
		return nil, fault.New(fault.KindNotFound,
			"sequence %s has no touchpoint at index %d", seq.ID, e.CurrentIndex)
	}
	tp := seq.Touchpoints[e.CurrentIndex]

	v, err := s.visitors.GetByID(e.VisitorID)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.GetByID(e.SessionID)
	if err != nil {
		return nil, err
	}

	req := generate.Request{
		VisitorName:   v.Name,
		VisitorEmail:  v.Email,
		InterestLevel: string(v.InterestLevel),
		VisitorNotes:  v.Notes,
		Address:       sess.Address,
		AgentID:       sess.AgentID,
		Prompt:        tp.TemplatePrompt,
		Channel:       string(tp.Channel),
	}

	var content *generate.Content
	err = notify.Retry(ctx, "generate follow-up", func() error {
		var genErr error
		content, genErr = s.gen.GenerateFollowUp(ctx, req)
		return genErr
	})
	if err != nil {
		return nil, fault.Wrap(fault.KindGenerationFailed, err,
			"generating content for enrollment %s touchpoint %d", id, e.CurrentIndex)
	}

	delivered, messageID := s.deliver(ctx, v.Email, v.Phone, tp.Channel, content, e)

	now := time.Now().UTC()
	newIndex := e.CurrentIndex + 1

	var nextAt, completedAt *time.Time
	if newIndex >= len(seq.Touchpoints) {
		completedAt = &now
	} else {
		// Delay is measured from execution time, not the enrollment's
		// original schedule. Late executions drift later on purpose.
		t := now.Add(seq.Touchpoints[newIndex].Delay())
		nextAt = &t
	}

	if err := s.repo.Advance(id, e.Version, newIndex, nextAt, completedAt); err != nil {
		return nil, err
	}

	if err := s.visitors.MarkFollowUp(v.ID, true, delivered); err != nil {
		slog.Warn("marking follow-up flags failed", "visitor_id", v.ID, "error", err)
	}

	updated, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	return &ExecuteResult{
		Enrollment: updated,
		Touchpoint: tp,
		Content:    content,
		Delivered:  delivered,
		MessageID:  messageID,
		Completed:  updated.Completed(),
	}, nil
}

// deliver hands the content to the channel's notifier with bounded retry.
// Failures are logged and reported via the return value only.
func (s *Service) deliver(ctx context.Context, email, phone string, ch sequence.Channel, content *generate.Content, e *Enrollment) (bool, string) {
	var messageID string
	var err error

	switch ch {
	case sequence.ChannelSMS:
		if s.sms == nil || phone == "" {
			slog.Warn("sms delivery skipped", "enrollment_id", e.ID, "has_phone", phone != "")
			return false, ""
		}
		err = notify.Retry(ctx, "send sms", func() error {
			var sendErr error
			messageID, sendErr = s.sms.SendSMS(phone, content.SMSText)
			return sendErr
		})
	default:
		if s.mailer == nil {
			slog.Warn("email delivery skipped, no mailer configured", "enrollment_id", e.ID)
			return false, ""
		}
		err = notify.Retry(ctx, "send email", func() error {
			var sendErr error
			messageID, sendErr = s.mailer.SendEmail(email, content.Subject, content.Body)
			return sendErr
		})
	}

	if err != nil {
		slog.Warn("touchpoint delivery failed",
			"enrollment_id", e.ID,
			"channel", ch,
			"error", fault.Wrap(fault.KindDeliveryFailed, err, "delivering touchpoint"),
		)
		return false, ""
	}

	return true, messageID
}

// RunDue executes every due enrollment once and reports how many succeeded
// and failed. Failures are logged and skipped so one bad enrollment cannot
// stall the rest of the batch.
func (s *Service) RunDue(ctx context.Context, limit int) (executed, failed int, err error) {
	due, err := s.repo.ListDue(time.Now().UTC(), limit)
	if err != nil {
		return 0, 0, err
	}

	for _, e := range due {
		if ctx.Err() != nil {
			return executed, failed, ctx.Err()
		}
		if _, err := s.Execute(ctx, e.ID); err != nil {
			failed++
			slog.Error("touchpoint execution failed", "enrollment_id", e.ID, "error", err)
			continue
		}
		executed++
	}

	return executed, failed, nil
}
