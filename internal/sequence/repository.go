package sequence

import (
	"database/sql"
	"fmt"

	"github.com/jredmond/openhouse/internal/fault"
	"github.com/jredmond/openhouse/internal/session"
)

// Repository provides CRUD operations for sequences and their touchpoints.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a sequence repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, agent_id, name, target_interest, active, created_at, updated_at`

// Insert stores a sequence and its touchpoints in one transaction.
func (r *Repository) Insert(s *Sequence) (_ *Sequence, err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				err = fmt.Errorf("%w (also failed to rollback: %v)", err, rbErr)
			}
		}
	}()

	_, err = tx.Exec(
		`INSERT INTO sequences (id, agent_id, name, target_interest, active)
			VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.AgentID, s.Name, string(s.Target), s.Active,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting sequence: %w", err)
	}

	if err = insertTouchpoints(tx, s.ID, s.Touchpoints); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing sequence: %w", err)
	}

	return r.GetByID(s.ID)
}

// Replace rewrites a sequence's fields and its whole touchpoint list.
func (r *Repository) Replace(s *Sequence) (_ *Sequence, err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				err = fmt.Errorf("%w (also failed to rollback: %v)", err, rbErr)
			}
		}
	}()

	result, err := tx.Exec(
		`UPDATE sequences SET name = ?, target_interest = ?, active = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
		s.Name, string(s.Target), s.Active, s.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating sequence: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fault.New(fault.KindNotFound, "sequence %s not found", s.ID)
	}

	if _, err = tx.Exec("DELETE FROM touchpoints WHERE sequence_id = ?", s.ID); err != nil {
		return nil, fmt.Errorf("clearing touchpoints: %w", err)
	}

	if err = insertTouchpoints(tx, s.ID, s.Touchpoints); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing sequence: %w", err)
	}

	return r.GetByID(s.ID)
}

func insertTouchpoints(tx *sql.Tx, sequenceID string, tps []Touchpoint) error {
	for _, tp := range tps {
		_, err := tx.Exec(
			`INSERT INTO touchpoints (sequence_id, position, delay_minutes, channel, template_prompt)
				VALUES (?, ?, ?, ?, ?)`,
			sequenceID, tp.Position, tp.DelayMinutes, string(tp.Channel), tp.TemplatePrompt,
		)
		if err != nil {
			return fmt.Errorf("inserting touchpoint %d: %w", tp.Position, err)
		}
	}
	return nil
}

// GetByID returns a sequence with its touchpoints in order.
func (r *Repository) GetByID(id string) (*Sequence, error) {
	query := fmt.Sprintf("SELECT %s FROM sequences WHERE id = ?", selectColumns)
	row := r.db.QueryRow(query, id)

	s, err := scanSequence(row)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.KindNotFound, "sequence %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying sequence %s: %w", id, err)
	}

	if err := r.loadTouchpoints(s); err != nil {
		return nil, err
	}

	return s, nil
}

// List returns all sequences for an agent, oldest first, with touchpoints.
func (r *Repository) List(agentID string) ([]*Sequence, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM sequences WHERE agent_id = ? ORDER BY created_at, id", selectColumns)

	rows, err := r.db.Query(query, agentID)
	if err != nil {
		return nil, fmt.Errorf("listing sequences: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var sequences []*Sequence
	for rows.Next() {
		s, err := scanSequence(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sequence: %w", err)
		}
		sequences = append(sequences, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sequences: %w", err)
	}

	for _, s := range sequences {
		if err := r.loadTouchpoints(s); err != nil {
			return nil, err
		}
	}

	return sequences, nil
}

// SelectForInterest picks the sequence for a visitor: the first active
// sequence targeting exactly the interest level, else the first active
// catch-all, else nil. Ties resolve by creation order.
func (r *Repository) SelectForInterest(agentID string, level session.InterestLevel) (*Sequence, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM sequences
			WHERE agent_id = ? AND active = 1 AND target_interest IN (?, 'all')
			ORDER BY CASE WHEN target_interest = ? THEN 0 ELSE 1 END, created_at, id
			LIMIT 1`, selectColumns)

	row := r.db.QueryRow(query, agentID, string(level), string(level))

	s, err := scanSequence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting sequence: %w", err)
	}

	if err := r.loadTouchpoints(s); err != nil {
		return nil, err
	}

	return s, nil
}

// SetActive toggles a sequence's active flag.
func (r *Repository) SetActive(id string, active bool) error {
	result, err := r.db.Exec(
		"UPDATE sequences SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		active, id,
	)
	if err != nil {
		return fmt.Errorf("setting active: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fault.New(fault.KindNotFound, "sequence %s not found", id)
	}

	return nil
}

// Delete removes a sequence, its touchpoints, and the completed enrollments
// that still reference it. Non-completed enrollments keep the sequence
// alive; the service refuses deletion while any exist.
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

	_, err = tx.Exec(
		"DELETE FROM enrollments WHERE sequence_id = ? AND completed_at IS NOT NULL",
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting completed enrollments: %w", err)
	}

	result, err := tx.Exec("DELETE FROM sequences WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting sequence: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fault.New(fault.KindNotFound, "sequence %s not found", id)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// ActiveEnrollmentCount returns how many non-completed enrollments
// reference the sequence. Used to guard edits against in-flight state.
func (r *Repository) ActiveEnrollmentCount(id string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM enrollments WHERE sequence_id = ? AND completed_at IS NULL",
		id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting enrollments: %w", err)
	}
	return count, nil
}

func (r *Repository) loadTouchpoints(s *Sequence) error {
	rows, err := r.db.Query(
		`SELECT position, delay_minutes, channel, template_prompt
			FROM touchpoints WHERE sequence_id = ? ORDER BY position`,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("querying touchpoints: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var tp Touchpoint
		var channel string
		if err := rows.Scan(&tp.Position, &tp.DelayMinutes, &channel, &tp.TemplatePrompt); err != nil {
			return fmt.Errorf("scanning touchpoint: %w", err)
		}
		tp.Channel = Channel(channel)
		s.Touchpoints = append(s.Touchpoints, tp)
	}

	return rows.Err()
}

// scanSequence scans a sequence row (without touchpoints).
func scanSequence(row interface{ Scan(...interface{}) error }) (*Sequence, error) {
	var s Sequence
	var target string
	var active int

	err := row.Scan(&s.ID, &s.AgentID, &s.Name, &target, &active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.Target = TargetInterest(target)
	s.Active = active != 0

	return &s, nil
}
