package sequence

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/jredmond/openhouse/internal/db"
	"github.com/jredmond/openhouse/internal/fault"
	"github.com/jredmond/openhouse/internal/session"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return d
}

func validSequenceInput() Input {
	return Input{
		AgentID: "agent-1",
		Name:    "High interest follow-up",
		Target:  "high",
		Touchpoints: []TouchpointInput{
			{DelayMinutes: 60, Channel: "email", TemplatePrompt: "thank them warmly"},
			{DelayMinutes: 1440, Channel: "sms", TemplatePrompt: "offer a private showing"},
		},
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(NewRepository(testDB(t)))

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing agent", func(in *Input) { in.AgentID = " " }},
		{"missing name", func(in *Input) { in.Name = "" }},
		{"bad target", func(in *Input) { in.Target = "everyone" }},
		{"no touchpoints", func(in *Input) { in.Touchpoints = nil }},
		{"negative delay", func(in *Input) { in.Touchpoints[0].DelayMinutes = -5 }},
		{"bad channel", func(in *Input) { in.Touchpoints[1].Channel = "pigeon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validSequenceInput()
			tt.mutate(&in)
			_, err := svc.Create(in)
			if fault.KindOf(err) != fault.KindInvalid {
				t.Errorf("kind = %q, want invalid", fault.KindOf(err))
			}
		})
	}
}

func TestCreateAssignsPositions(t *testing.T) {
	svc := NewService(NewRepository(testDB(t)))

	seq, err := svc.Create(validSequenceInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !seq.Active {
		t.Error("new sequence should default to active")
	}
	if len(seq.Touchpoints) != 2 {
		t.Fatalf("touchpoints = %d, want 2", len(seq.Touchpoints))
	}
	for i, tp := range seq.Touchpoints {
		if tp.Position != i {
			t.Errorf("touchpoint %d position = %d", i, tp.Position)
		}
	}
	if seq.Touchpoints[1].Channel != ChannelSMS {
		t.Errorf("channel = %q, want sms", seq.Touchpoints[1].Channel)
	}
}

func TestUpdateReplacesTouchpoints(t *testing.T) {
	svc := NewService(NewRepository(testDB(t)))

	seq, err := svc.Create(validSequenceInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	in := validSequenceInput()
	in.Name = "Renamed"
	in.Touchpoints = []TouchpointInput{
		{DelayMinutes: 0, Channel: "email", TemplatePrompt: "send immediately"},
	}

	updated, err := svc.Update(seq.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("name = %q", updated.Name)
	}
	if len(updated.Touchpoints) != 1 || updated.Touchpoints[0].DelayMinutes != 0 {
		t.Errorf("touchpoints = %+v, want single immediate step", updated.Touchpoints)
	}
}

func TestUpdateRefusedWhileEnrollmentsInFlight(t *testing.T) {
	d := testDB(t)
	svc := NewService(NewRepository(d))

	seq, err := svc.Create(validSequenceInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	insertEnrollmentFixture(t, d, "e1", seq.ID, nil)

	_, err = svc.Update(seq.ID, validSequenceInput())
	if fault.KindOf(err) != fault.KindPrecondition {
		t.Errorf("update kind = %q, want precondition_failed", fault.KindOf(err))
	}
	if err := svc.Delete(seq.ID); fault.KindOf(err) != fault.KindPrecondition {
		t.Errorf("delete kind = %q, want precondition_failed", fault.KindOf(err))
	}

	// Completed enrollments no longer block edits.
	if _, err := d.Exec("UPDATE enrollments SET completed_at = CURRENT_TIMESTAMP WHERE id = 'e1'"); err != nil {
		t.Fatalf("complete enrollment: %v", err)
	}
	if _, err := svc.Update(seq.ID, validSequenceInput()); err != nil {
		t.Errorf("update after completion: %v", err)
	}
}

func TestSetActive(t *testing.T) {
	svc := NewService(NewRepository(testDB(t)))

	seq, err := svc.Create(validSequenceInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	deactivated, err := svc.SetActive(seq.ID, false)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if deactivated.Active {
		t.Error("sequence still active")
	}

	if _, err := svc.SetActive("missing", true); fault.KindOf(err) != fault.KindNotFound {
		t.Errorf("kind = %q, want not_found", fault.KindOf(err))
	}
}

func TestTargetMatches(t *testing.T) {
	if !TargetAll.Matches(session.InterestLow) {
		t.Error("all should match low")
	}
	if !TargetHigh.Matches(session.InterestHigh) {
		t.Error("high should match high")
	}
	if TargetHigh.Matches(session.InterestLow) {
		t.Error("high should not match low")
	}
}

// insertEnrollmentFixture writes the session and visitor rows an enrollment
// needs, then the enrollment itself. completedAt nil means in flight.
func insertEnrollmentFixture(t *testing.T, d *sql.DB, id, sequenceID string, completedAt *string) {
	t.Helper()

	_, err := d.Exec(
		`INSERT OR IGNORE INTO sessions (id, agent_id, address, scheduled_start, scheduled_end, status)
			VALUES ('fix-s1', 'agent-1', '123 Main St', '2026-06-01 13:00:00', '2026-06-01 15:00:00', 'active')`)
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}

	_, err = d.Exec(
		`INSERT OR IGNORE INTO visitors (id, session_id, name, email, interest_level, checkin_time)
			VALUES ('fix-v1', 'fix-s1', 'Pat Lee', 'pat@example.com', 'high', '2026-06-01 13:10:00')`)
	if err != nil {
		t.Fatalf("insert visitor: %v", err)
	}

	_, err = d.Exec(
		`INSERT INTO enrollments (id, sequence_id, visitor_id, session_id, completed_at)
			VALUES (?, ?, 'fix-v1', 'fix-s1', ?)`,
		id, sequenceID, completedAt)
	if err != nil {
		t.Fatalf("insert enrollment: %v", err)
	}
}

func TestDeleteSweepsCompletedEnrollments(t *testing.T) {
	d := testDB(t)
	svc := NewService(NewRepository(d))

	seq, err := svc.Create(validSequenceInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done := "2026-06-02 10:00:00"
	insertEnrollmentFixture(t, d, "e-done", seq.ID, &done)

	if err := svc.Delete(seq.ID); err != nil {
		t.Fatalf("delete with completed enrollment: %v", err)
	}

	if _, err := svc.Get(seq.ID); fault.KindOf(err) != fault.KindNotFound {
		t.Errorf("get after delete kind = %q, want not_found", fault.KindOf(err))
	}

	var count int
	if err := d.QueryRow("SELECT COUNT(*) FROM enrollments WHERE sequence_id = ?", seq.ID).Scan(&count); err != nil {
		t.Fatalf("count enrollments: %v", err)
	}
	if count != 0 {
		t.Errorf("enrollments left behind = %d, want 0", count)
	}
}
