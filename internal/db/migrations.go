package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL statements to run.
// Each statement is idempotent (CREATE ... IF NOT EXISTS).
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id              TEXT     PRIMARY KEY,
		agent_id        TEXT     NOT NULL,
		address         TEXT     NOT NULL,
		scheduled_start DATETIME NOT NULL,
		scheduled_end   DATETIME NOT NULL,
		status          TEXT     NOT NULL DEFAULT 'scheduled'
		                CHECK (status IN ('scheduled', 'active', 'completed', 'cancelled')),
		actual_start    DATETIME,
		actual_end      DATETIME,
		visitor_count   INTEGER  NOT NULL DEFAULT 0 CHECK (visitor_count >= 0),
		interest_low    INTEGER  NOT NULL DEFAULT 0 CHECK (interest_low >= 0),
		interest_medium INTEGER  NOT NULL DEFAULT 0 CHECK (interest_medium >= 0),
		interest_high   INTEGER  NOT NULL DEFAULT 0 CHECK (interest_high >= 0),
		version         INTEGER  NOT NULL DEFAULT 1,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
	`CREATE TABLE IF NOT EXISTS visitors (
		id                 TEXT     PRIMARY KEY,
		session_id         TEXT     NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		name               TEXT     NOT NULL,
		email              TEXT     NOT NULL,
		phone              TEXT     NOT NULL DEFAULT '',
		interest_level     TEXT     NOT NULL
		                   CHECK (interest_level IN ('low', 'medium', 'high')),
		checkin_time       DATETIME NOT NULL,
		notes              TEXT     NOT NULL DEFAULT '',
		source             TEXT     NOT NULL DEFAULT '',
		followup_generated INTEGER  NOT NULL DEFAULT 0,
		followup_sent      INTEGER  NOT NULL DEFAULT 0,
		enrollment_id      TEXT,
		created_at         DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at         DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_visitors_session_email
		ON visitors(session_id, lower(email))`,
	`CREATE TABLE IF NOT EXISTS sequences (
		id              TEXT     PRIMARY KEY,
		agent_id        TEXT     NOT NULL,
		name            TEXT     NOT NULL,
		target_interest TEXT     NOT NULL DEFAULT 'all'
		                CHECK (target_interest IN ('low', 'medium', 'high', 'all')),
		active          INTEGER  NOT NULL DEFAULT 1,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS touchpoints (
		sequence_id     TEXT    NOT NULL REFERENCES sequences(id) ON DELETE CASCADE,
		position        INTEGER NOT NULL CHECK (position >= 0),
		delay_minutes   INTEGER NOT NULL CHECK (delay_minutes >= 0),
		channel         TEXT    NOT NULL CHECK (channel IN ('email', 'sms')),
		template_prompt TEXT    NOT NULL DEFAULT '',
		PRIMARY KEY (sequence_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		id                TEXT     PRIMARY KEY,
		sequence_id       TEXT     NOT NULL REFERENCES sequences(id),
		visitor_id        TEXT     NOT NULL REFERENCES visitors(id) ON DELETE CASCADE,
		session_id        TEXT     NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		current_index     INTEGER  NOT NULL DEFAULT 0 CHECK (current_index >= 0),
		next_touchpoint_at DATETIME,
		paused            INTEGER  NOT NULL DEFAULT 0,
		completed_at      DATETIME,
		version           INTEGER  NOT NULL DEFAULT 1,
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_due
		ON enrollments(next_touchpoint_at) WHERE completed_at IS NULL AND paused = 0`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_visitor ON enrollments(visitor_id)`,
	`CREATE TABLE IF NOT EXISTS checkin_tokens (
		token      TEXT     PRIMARY KEY,
		session_id TEXT     NOT NULL UNIQUE REFERENCES sessions(id) ON DELETE CASCADE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id           INTEGER  PRIMARY KEY AUTOINCREMENT,
		name         TEXT     NOT NULL,
		key_prefix   TEXT     NOT NULL,
		key_hash     TEXT     NOT NULL UNIQUE,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME
	)`,
}

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	return nil
}
