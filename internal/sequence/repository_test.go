package sequence

import (
	"database/sql"
	"testing"

	"github.com/jredmond/openhouse/internal/session"
)

// insertSequenceRow writes a sequence with an explicit creation time so
// selection ordering is deterministic.
func insertSequenceRow(t *testing.T, d *sql.DB, id, agentID, target string, active bool, createdAt string) {
	t.Helper()
	_, err := d.Exec(
		`INSERT INTO sequences (id, agent_id, name, target_interest, active, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
		id, agentID, "seq "+id, target, active, createdAt)
	if err != nil {
		t.Fatalf("insert sequence %s: %v", id, err)
	}
	_, err = d.Exec(
		`INSERT INTO touchpoints (sequence_id, position, delay_minutes, channel, template_prompt)
			VALUES (?, 0, 60, 'email', 'say thanks')`, id)
	if err != nil {
		t.Fatalf("insert touchpoint for %s: %v", id, err)
	}
}

func TestSelectForInterestPrefersExactTarget(t *testing.T) {
	d := testDB(t)
	repo := NewRepository(d)

	// Catch-all created first; an exact match must still win.
	insertSequenceRow(t, d, "q-all", "agent-1", "all", true, "2026-01-01 10:00:00")
	insertSequenceRow(t, d, "q-high", "agent-1", "high", true, "2026-02-01 10:00:00")

	got, err := repo.SelectForInterest("agent-1", session.InterestHigh)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got == nil || got.ID != "q-high" {
		t.Errorf("selected = %+v, want q-high", got)
	}
	if len(got.Touchpoints) != 1 {
		t.Errorf("touchpoints not loaded: %+v", got)
	}
}

func TestSelectForInterestFallsBackToCatchAll(t *testing.T) {
	d := testDB(t)
	repo := NewRepository(d)

	insertSequenceRow(t, d, "q-all", "agent-1", "all", true, "2026-01-01 10:00:00")
	insertSequenceRow(t, d, "q-high", "agent-1", "high", true, "2026-02-01 10:00:00")

	got, err := repo.SelectForInterest("agent-1", session.InterestLow)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got == nil || got.ID != "q-all" {
		t.Errorf("selected = %+v, want q-all", got)
	}
}

func TestSelectForInterestTieBreaksByCreation(t *testing.T) {
	d := testDB(t)
	repo := NewRepository(d)

	insertSequenceRow(t, d, "q-newer", "agent-1", "medium", true, "2026-03-01 10:00:00")
	insertSequenceRow(t, d, "q-older", "agent-1", "medium", true, "2026-01-01 10:00:00")

	got, err := repo.SelectForInterest("agent-1", session.InterestMedium)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got == nil || got.ID != "q-older" {
		t.Errorf("selected = %+v, want q-older", got)
	}
}

func TestSelectForInterestSkipsInactive(t *testing.T) {
	d := testDB(t)
	repo := NewRepository(d)

	insertSequenceRow(t, d, "q-high", "agent-1", "high", false, "2026-01-01 10:00:00")
	insertSequenceRow(t, d, "q-all", "agent-1", "all", true, "2026-02-01 10:00:00")

	got, err := repo.SelectForInterest("agent-1", session.InterestHigh)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got == nil || got.ID != "q-all" {
		t.Errorf("selected = %+v, want q-all", got)
	}
}

func TestSelectForInterestNoMatch(t *testing.T) {
	d := testDB(t)
	repo := NewRepository(d)

	insertSequenceRow(t, d, "q-high", "agent-1", "high", true, "2026-01-01 10:00:00")

	// Wrong level and wrong agent both come back empty, not as errors.
	got, err := repo.SelectForInterest("agent-1", session.InterestLow)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != nil {
		t.Errorf("selected = %+v, want nil", got)
	}

	got, err = repo.SelectForInterest("agent-2", session.InterestHigh)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != nil {
		t.Errorf("selected = %+v, want nil", got)
	}
}

func TestListLoadsTouchpointsInOrder(t *testing.T) {
	d := testDB(t)
	repo := NewRepository(d)

	seq, err := repo.Insert(&Sequence{
		ID:      "q1",
		AgentID: "agent-1",
		Name:    "Ordered",
		Target:  TargetAll,
		Active:  true,
		Touchpoints: []Touchpoint{
			{Position: 0, DelayMinutes: 0, Channel: ChannelEmail},
			{Position: 1, DelayMinutes: 30, Channel: ChannelSMS},
			{Position: 2, DelayMinutes: 120, Channel: ChannelEmail},
		},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	for i, tp := range seq.Touchpoints {
		if tp.Position != i {
			t.Errorf("touchpoint %d out of order: %+v", i, tp)
		}
	}

	all, err := repo.List("agent-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || len(all[0].Touchpoints) != 3 {
		t.Errorf("list = %+v", all)
	}
}
