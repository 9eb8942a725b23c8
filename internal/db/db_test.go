package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "creates new database",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "openhouse.db")
			},
		},
		{
			name: "creates nested directories",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "a", "b", "openhouse.db")
			},
		},
		{
			name: "opens existing database",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "openhouse.db")
				d, err := Open(path)
				if err != nil {
					t.Fatalf("setup: %v", err)
				}
				if err := d.Close(); err != nil {
					t.Fatalf("setup close: %v", err)
				}
				return path
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			d, err := Open(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer func() {
				if err := d.Close(); err != nil {
					t.Errorf("close: %v", err)
				}
			}()

			if _, err := os.Stat(path); os.IsNotExist(err) {
				t.Error("database file was not created")
			}
		})
	}
}

func TestWALMode(t *testing.T) {
	d := openTestDB(t)

	var mode string
	if err := d.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestForeignKeys(t *testing.T) {
	d := openTestDB(t)

	var fk int
	if err := d.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestMigrations(t *testing.T) {
	tests := []struct {
		name  string
		table string
		cols  []string
	}{
		{
			name:  "sessions table exists",
			table: "sessions",
			cols:  []string{"id", "agent_id", "address", "scheduled_start", "scheduled_end", "status", "actual_start", "actual_end", "visitor_count", "interest_low", "interest_medium", "interest_high", "version", "created_at", "updated_at"},
		},
		{
			name:  "visitors table exists",
			table: "visitors",
			cols:  []string{"id", "session_id", "name", "email", "phone", "interest_level", "checkin_time", "notes", "source", "followup_generated", "followup_sent", "enrollment_id", "created_at", "updated_at"},
		},
		{
			name:  "sequences table exists",
			table: "sequences",
			cols:  []string{"id", "agent_id", "name", "target_interest", "active", "created_at", "updated_at"},
		},
		{
			name:  "touchpoints table exists",
			table: "touchpoints",
			cols:  []string{"sequence_id", "position", "delay_minutes", "channel", "template_prompt"},
		},
		{
			name:  "enrollments table exists",
			table: "enrollments",
			cols:  []string{"id", "sequence_id", "visitor_id", "session_id", "current_index", "next_touchpoint_at", "paused", "completed_at", "version", "created_at", "updated_at"},
		},
		{
			name:  "checkin_tokens table exists",
			table: "checkin_tokens",
			cols:  []string{"token", "session_id", "created_at"},
		},
		{
			name:  "api_keys table exists",
			table: "api_keys",
			cols:  []string{"id", "name", "key_prefix", "key_hash", "created_at", "last_used_at"},
		},
	}

	d := openTestDB(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := tableColumns(t, d, tt.table)
			if len(cols) != len(tt.cols) {
				t.Fatalf("got %d columns, want %d: %v", len(cols), len(tt.cols), cols)
			}
			for i, want := range tt.cols {
				if cols[i] != want {
					t.Errorf("column %d = %q, want %q", i, cols[i], want)
				}
			}
		})
	}
}

func TestDuplicateEmailConstraint(t *testing.T) {
	d := openTestDB(t)

	insertTestSession(t, d, "s1")

	insert := `INSERT INTO visitors (id, session_id, name, email, interest_level, checkin_time)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`

	if _, err := d.Exec(insert, "v1", "s1", "Ann", "Ann@Example.com", "high"); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// Same email with different casing must collide.
	if _, err := d.Exec(insert, "v2", "s1", "Ann Again", "ann@example.COM", "low"); err == nil {
		t.Error("expected unique constraint violation for case-insensitive duplicate email")
	}

	// Same email in a different session is fine.
	insertTestSession(t, d, "s2")
	if _, err := d.Exec(insert, "v3", "s2", "Ann", "ann@example.com", "high"); err != nil {
		t.Errorf("same email in another session should insert: %v", err)
	}
}

func TestCascadeDelete(t *testing.T) {
	d := openTestDB(t)

	insertTestSession(t, d, "s1")

	for i := 0; i < 3; i++ {
		_, err := d.Exec(
			`INSERT INTO visitors (id, session_id, name, email, interest_level, checkin_time)
				VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
			fmt.Sprintf("v%d", i), "s1", "Visitor", fmt.Sprintf("v%d@example.com", i), "medium",
		)
		if err != nil {
			t.Fatalf("insert visitor %d: %v", i, err)
		}
	}

	var count int
	if err := d.QueryRow(`SELECT COUNT(*) FROM visitors WHERE session_id = 's1'`).Scan(&count); err != nil {
		t.Fatalf("count visitors: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 visitors, got %d", count)
	}

	if _, err := d.Exec(`DELETE FROM sessions WHERE id = 's1'`); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	if err := d.QueryRow(`SELECT COUNT(*) FROM visitors WHERE session_id = 's1'`).Scan(&count); err != nil {
		t.Fatalf("count visitors after delete: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 visitors after cascade delete, got %d", count)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openhouse.db")

	// Open twice — migrations should not fail on second run
	d1, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := d1.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}

	d2, err := Open(path)
	if err != nil {
		t.Fatalf("second open (idempotency): %v", err)
	}
	if err := d2.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	p, err := DefaultPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filepath.Base(p) != "openhouse.db" {
		t.Errorf("expected filename openhouse.db, got %s", filepath.Base(p))
	}

	dir := filepath.Base(filepath.Dir(p))
	if dir != ".openhouse" {
		t.Errorf("expected directory .openhouse, got %s", dir)
	}
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openhouse.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close test db: %v", err)
		}
	})
	return d
}

// insertTestSession inserts a minimal session row.
func insertTestSession(t *testing.T, d *sql.DB, id string) {
	t.Helper()
	_, err := d.Exec(
		`INSERT INTO sessions (id, agent_id, address, scheduled_start, scheduled_end)
			VALUES (?, 'agent-1', '123 Main St', '2026-06-01 13:00:00', '2026-06-01 15:00:00')`,
		id,
	)
	if err != nil {
		t.Fatalf("insert session %s: %v", id, err)
	}
}

// tableColumns returns column names for a table using PRAGMA table_info.
func tableColumns(t *testing.T, d *sql.DB, table string) []string {
	t.Helper()
	rows, err := d.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		t.Fatalf("pragma table_info(%s): %v", table, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			t.Errorf("close rows: %v", err)
		}
	}()

	var cols []string
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull int
		var dflt *string
		var pk int
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			t.Fatalf("scan: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}
