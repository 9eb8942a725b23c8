package enrollment

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jredmond/openhouse/internal/fault"
)

// Repository provides CRUD and scheduling queries for enrollments.
type Repository struct {
	db *sql.DB
}

// NewRepository creates an enrollment repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, sequence_id, visitor_id, session_id, current_index,
	next_touchpoint_at, paused, completed_at, version, created_at, updated_at`

// Create stores an enrollment and writes the visitor's back-reference in
// the same transaction. An existing reference is overwritten; the visitor
// record tracks at most one enrollment.
func (r *Repository) Create(e *Enrollment) (err error) {
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
		`INSERT INTO enrollments (id, sequence_id, visitor_id, session_id, current_index, next_touchpoint_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.SequenceID, e.VisitorID, e.SessionID, e.CurrentIndex, e.NextTouchpointAt,
	)
	if err != nil {
		return fmt.Errorf("inserting enrollment: %w", err)
	}

	_, err = tx.Exec(
		"UPDATE visitors SET enrollment_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		e.ID, e.VisitorID,
	)
	if err != nil {
		return fmt.Errorf("setting visitor back-reference: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing enrollment: %w", err)
	}

	return nil
}

// GetByID returns an enrollment by its ID.
func (r *Repository) GetByID(id string) (*Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = ?", selectColumns)
	row := r.db.QueryRow(query, id)

	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.KindNotFound, "enrollment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying enrollment %s: %w", id, err)
	}

	return e, nil
}

// ActiveExists reports whether the visitor already has a non-completed
// enrollment in the given sequence.
func (r *Repository) ActiveExists(visitorID, sequenceID string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM enrollments
			WHERE visitor_id = ? AND sequence_id = ? AND completed_at IS NULL`,
		visitorID, sequenceID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking active enrollment: %w", err)
	}
	return count > 0, nil
}

// ListDue returns enrollments with work ready at the given instant: not
// paused, not completed, next touchpoint time set and passed. Ordered by
// due time so the oldest backlog drains first. limit <= 0 means no limit.
func (r *Repository) ListDue(now time.Time, limit int) ([]*Enrollment, error) {
	if limit <= 0 {
		limit = -1
	}

	query := fmt.Sprintf(
		`SELECT %s FROM enrollments
			WHERE paused = 0 AND completed_at IS NULL
				AND next_touchpoint_at IS NOT NULL AND next_touchpoint_at <= ?
			ORDER BY next_touchpoint_at, id
			LIMIT ?`, selectColumns)

	rows, err := r.db.Query(query, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing due enrollments: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var due []*Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning enrollment: %w", err)
		}
		due = append(due, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating enrollments: %w", err)
	}

	return due, nil
}

// ListBySession returns a session's enrollments, newest first.
func (r *Repository) ListBySession(sessionID string) ([]*Enrollment, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM enrollments WHERE session_id = ? ORDER BY created_at DESC, id DESC",
		selectColumns,
	)

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing enrollments: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var enrollments []*Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating enrollments: %w", err)
	}

	return enrollments, nil
}

// SetPaused toggles the paused flag. The due time is retained so resuming
// restores eligibility without rescheduling.
func (r *Repository) SetPaused(id string, paused bool) error {
	result, err := r.db.Exec(
		"UPDATE enrollments SET paused = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		paused, id,
	)
	if err != nil {
		return fmt.Errorf("setting paused: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fault.New(fault.KindNotFound, "enrollment %s not found", id)
	}

	return nil
}

// Advance moves an enrollment to the next touchpoint state, conditionally
// on the version the caller read. A losing race surfaces as a conflict so
// a touchpoint is never executed twice.
func (r *Repository) Advance(id string, version int64, newIndex int, nextAt, completedAt *time.Time) error {
	result, err := r.db.Exec(
		`UPDATE enrollments SET
			current_index = ?,
			next_touchpoint_at = ?,
			completed_at = ?,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`,
		newIndex, nextAt, completedAt, id, version,
	)
	if err != nil {
		return fmt.Errorf("advancing enrollment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(id); err != nil {
			return err
		}
		return fault.New(fault.KindConflict, "enrollment %s was modified concurrently", id)
	}

	return nil
}

// scanEnrollment scans an enrollment from a database row.
func scanEnrollment(row interface{ Scan(...interface{}) error }) (*Enrollment, error) {
	var e Enrollment
	var paused int
	var nextAt, completedAt sql.NullTime

	err := row.Scan(
		&e.ID, &e.SequenceID, &e.VisitorID, &e.SessionID, &e.CurrentIndex,
		&nextAt, &paused, &completedAt, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Paused = paused != 0
	if nextAt.Valid {
		t := nextAt.Time
		e.NextTouchpointAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		e.CompletedAt = &t
	}

	return &e, nil
}
