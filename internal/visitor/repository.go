package visitor

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/jredmond/openhouse/internal/fault"
	"github.com/jredmond/openhouse/internal/session"
)

// Repository provides visitor CRUD plus the coupled session-aggregate
// updates. Every mutation that changes a visitor's interest bucket runs in
// the same transaction as the aggregate adjustment so the distribution
// invariant holds after every operation.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a visitor repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, session_id, name, email, phone, interest_level, checkin_time,
	notes, source, followup_generated, followup_sent, enrollment_id, created_at, updated_at`

// bucketColumn maps an interest level to its aggregate column. Levels are
// validated before they reach SQL.
func bucketColumn(level session.InterestLevel) string {
	switch level {
	case session.InterestLow:
		return "interest_low"
	case session.InterestMedium:
		return "interest_medium"
	default:
		return "interest_high"
	}
}

// isUniqueViolation reports whether err is the (session_id, lower(email))
// unique index firing.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Create inserts a visitor and increments the owning session's visitor
// count and interest bucket in one transaction. The write is conditional on
// the session still being active at the version the caller read.
func (r *Repository) Create(v *Visitor, sessionVersion int64) (err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				err = fmt.Errorf("%w (also failed to rollback: %v)", err, rbErr)
			}
		}
	}()

	_, err = tx.Exec(
		`INSERT INTO visitors (id, session_id, name, email, phone, interest_level, checkin_time, notes, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.SessionID, v.Name, v.Email, v.Phone, string(v.InterestLevel),
		v.CheckInTime, v.Notes, v.Source,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fault.New(fault.KindDuplicate,
				"visitor with email %s already checked into session %s", v.Email, v.SessionID)
		}
		return fmt.Errorf("inserting visitor: %w", err)
	}

	result, err := tx.Exec(
		fmt.Sprintf(`UPDATE sessions SET
			visitor_count = visitor_count + 1,
			%s = %s + 1,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'active' AND version = ?`,
			bucketColumn(v.InterestLevel), bucketColumn(v.InterestLevel)),
		v.SessionID, sessionVersion,
	)
	if err != nil {
		return fmt.Errorf("updating session aggregates: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fault.New(fault.KindConflict,
			"session %s was modified concurrently", v.SessionID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing check-in: %w", err)
	}

	return nil
}

// GetByID returns a visitor by its ID.
func (r *Repository) GetByID(id string) (*Visitor, error) {
	query := fmt.Sprintf("SELECT %s FROM visitors WHERE id = ?", selectColumns)
	row := r.db.QueryRow(query, id)

	v, err := scanVisitor(row)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.KindNotFound, "visitor %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying visitor %s: %w", id, err)
	}

	return v, nil
}

// ListBySession returns all visitors for a session, newest check-in first.
func (r *Repository) ListBySession(sessionID string) ([]*Visitor, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM visitors WHERE session_id = ? ORDER BY checkin_time DESC, id DESC",
		selectColumns,
	)

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing visitors: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var visitors []*Visitor
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning visitor: %w", err)
		}
		visitors = append(visitors, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visitors: %w", err)
	}

	return visitors, nil
}

// EmailExists reports whether another visitor in the session already uses
// the email, case-insensitively. excludeID skips the visitor's own record.
func (r *Repository) EmailExists(sessionID, email, excludeID string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM visitors WHERE session_id = ? AND lower(email) = lower(?) AND id != ?",
		sessionID, email, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking email: %w", err)
	}
	return count > 0, nil
}

// Update applies field changes. An interest-level change moves one unit
// between the session's buckets in the same transaction; the CHECK
// constraints refuse a decrement below zero.
func (r *Repository) Update(v *Visitor, oldInterest session.InterestLevel) (err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				err = fmt.Errorf("%w (also failed to rollback: %v)", err, rbErr)
			}
		}
	}()

	_, err = tx.Exec(
		`UPDATE visitors SET name = ?, email = ?, phone = ?, interest_level = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
		v.Name, v.Email, v.Phone, string(v.InterestLevel), v.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fault.New(fault.KindDuplicate,
				"visitor with email %s already checked into session %s", v.Email, v.SessionID)
		}
		return fmt.Errorf("updating visitor: %w", err)
	}

	if oldInterest != v.InterestLevel {
		_, err = tx.Exec(
			fmt.Sprintf(`UPDATE sessions SET
				%s = %s - 1,
				%s = %s + 1,
				version = version + 1,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
				bucketColumn(oldInterest), bucketColumn(oldInterest),
				bucketColumn(v.InterestLevel), bucketColumn(v.InterestLevel)),
			v.SessionID,
		)
		if err != nil {
			return fmt.Errorf("moving interest bucket: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}

	return nil
}

// Delete removes a visitor and reverses their contribution to the session
// aggregates, floored at zero.
func (r *Repository) Delete(id string) (err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				err = fmt.Errorf("%w (also failed to rollback: %v)", err, rbErr)
			}
		}
	}()

	var sessionID, level string
	err = tx.QueryRow(
		"SELECT session_id, interest_level FROM visitors WHERE id = ?", id,
	).Scan(&sessionID, &level)
	if err == sql.ErrNoRows {
		return fault.New(fault.KindNotFound, "visitor %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("reading visitor: %w", err)
	}

	if _, err = tx.Exec("DELETE FROM visitors WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting visitor: %w", err)
	}

	col := bucketColumn(session.InterestLevel(level))
	_, err = tx.Exec(
		fmt.Sprintf(`UPDATE sessions SET
			visitor_count = max(visitor_count - 1, 0),
			%s = max(%s - 1, 0),
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, col, col),
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("reversing session aggregates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	return nil
}

// AppendNotes concatenates a timestamp-prefixed line onto the visitor's
// notes. History is never overwritten.
func (r *Repository) AppendNotes(id, text string, now time.Time) error {
	line := fmt.Sprintf("[%s] %s", now.UTC().Format(time.RFC3339), text)

	result, err := r.db.Exec(
		`UPDATE visitors SET
			notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		line, line, id,
	)
	if err != nil {
		return fmt.Errorf("appending notes: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fault.New(fault.KindNotFound, "visitor %s not found", id)
	}

	return nil
}

// MarkFollowUp records the follow-up flags. Flags only ever move forward.
func (r *Repository) MarkFollowUp(id string, generated, sent bool) error {
	result, err := r.db.Exec(
		`UPDATE visitors SET
			followup_generated = max(followup_generated, ?),
			followup_sent = max(followup_sent, ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		boolToInt(generated), boolToInt(sent), id,
	)
	if err != nil {
		return fmt.Errorf("marking follow-up: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fault.New(fault.KindNotFound, "visitor %s not found", id)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanVisitor scans a visitor from a database row.
func scanVisitor(row interface{ Scan(...interface{}) error }) (*Visitor, error) {
	var v Visitor
	var level string
	var generated, sent int
	var enrollmentID sql.NullString

	err := row.Scan(
		&v.ID, &v.SessionID, &v.Name, &v.Email, &v.Phone, &level, &v.CheckInTime,
		&v.Notes, &v.Source, &generated, &sent, &enrollmentID, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.InterestLevel = session.InterestLevel(level)
	v.FollowUpGenerated = generated != 0
	v.FollowUpSent = sent != 0
	if enrollmentID.Valid {
		s := enrollmentID.String
		v.EnrollmentID = &s
	}

	return &v, nil
}
