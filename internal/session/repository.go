package session

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jredmond/openhouse/internal/fault"
)

// Repository provides CRUD operations for sessions.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a session repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, agent_id, address, scheduled_start, scheduled_end, status,
	actual_start, actual_end, visitor_count, interest_low, interest_medium, interest_high,
	version, created_at, updated_at`

// Insert adds a new session and returns it as stored.
func (r *Repository) Insert(s *Session) (*Session, error) {
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, agent_id, address, scheduled_start, scheduled_end, status)
			VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.AgentID, s.Address, s.ScheduledStart, s.ScheduledEnd, string(s.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	return r.GetByID(s.ID)
}

// GetByID returns a session by its ID.
func (r *Repository) GetByID(id string) (*Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = ?", selectColumns)
	row := r.db.QueryRow(query, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.KindNotFound, "session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying session %s: %w", id, err)
	}

	return s, nil
}

// ListOptions controls filtering for List.
type ListOptions struct {
	Status Status // empty = all
}

// List returns all sessions, newest first, optionally filtered by status.
func (r *Repository) List(opts ListOptions) ([]*Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions", selectColumns)
	var args []interface{}

	if opts.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(opts.Status))
	}

	query += " ORDER BY scheduled_start DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return sessions, nil
}

// Transition moves a session to a new status, conditionally on the version
// the caller read. Timestamps are only stamped when non-nil. A version
// mismatch surfaces as a concurrent-modification conflict.
func (r *Repository) Transition(id string, version int64, newStatus Status, actualStart, actualEnd *time.Time) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET
			status = ?,
			actual_start = COALESCE(?, actual_start),
			actual_end = COALESCE(?, actual_end),
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`,
		string(newStatus), actualStart, actualEnd, id, version,
	)
	if err != nil {
		return fmt.Errorf("updating session status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(id); err != nil {
			return err
		}
		return fault.New(fault.KindConflict, "session %s was modified concurrently", id)
	}

	return nil
}

// Delete permanently removes a session. Visitors, enrollments, and check-in
// tokens go with it via foreign key cascade.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fault.New(fault.KindNotFound, "session %s not found", id)
	}

	return nil
}

// scanSession scans a session from a database row.
func scanSession(row interface{ Scan(...interface{}) error }) (*Session, error) {
	var s Session
	var status string
	var actualStart, actualEnd sql.NullTime

	err := row.Scan(
		&s.ID, &s.AgentID, &s.Address, &s.ScheduledStart, &s.ScheduledEnd, &status,
		&actualStart, &actualEnd, &s.VisitorCount, &s.InterestLow, &s.InterestMedium,
		&s.InterestHigh, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = Status(status)
	if actualStart.Valid {
		t := actualStart.Time
		s.ActualStart = &t
	}
	if actualEnd.Valid {
		t := actualEnd.Time
		s.ActualEnd = &t
	}

	return &s, nil
}
