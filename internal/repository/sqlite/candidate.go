package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hirevet/hirevet/pkg/models"
)

const candidateColumns = `id, test_id, name, email, assigned_questions, answers, score, total_questions, status, lockout_reason, reappearance_requested_at, reappearance_approved_at, reappearance_approved_by, started_at, completed_at, created, updated`

// CreateIfAbsent inserts the attempt unless a row already exists for the
// (test, email) pair. The UNIQUE(test_id, email) constraint makes this safe
// against two concurrent start calls: the loser's insert affects no rows and
// the winner's id is returned instead.
func (r *SQLiteRepo) CreateIfAbsent(ctx context.Context, c *models.Candidate) (int64, bool, error) {
	if c == nil {
		return 0, false, fmt.Errorf("candidate is nil")
	}

	questions, err := json.Marshal(c.AssignedQuestions)
	if err != nil {
		return 0, false, fmt.Errorf("encode assigned questions: %w", err)
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO candidates (test_id, name, email, assigned_questions, total_questions, status, started_at, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(test_id, email) DO NOTHING`,
		c.TestID, c.Name, c.Email, string(questions), len(c.AssignedQuestions), models.StatusInProgress, c.StartedAt, ts, ts)
	if err != nil {
		return 0, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if affected == 0 {
		existing, err := r.GetByTestAndEmail(ctx, c.TestID, c.Email)
		if err != nil {
			return 0, false, err
		}
		if existing == nil {
			return 0, false, fmt.Errorf("candidate insert conflicted but no row found for test %d email %s", c.TestID, c.Email)
		}

		return existing.ID, false, nil
	}

	id, err := res.LastInsertId()
	return id, true, err
}

func (r *SQLiteRepo) GetCandidateByID(ctx context.Context, id int64) (*models.Candidate, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	return scanCandidate(row)
}

func (r *SQLiteRepo) GetByTestAndEmail(ctx context.Context, testID int64, email string) (*models.Candidate, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE test_id = ? AND email = ?`, testID, email)
	return scanCandidate(row)
}

func (r *SQLiteRepo) ListCandidates(ctx context.Context, testID int64) ([]models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates ORDER BY created DESC`
	args := []any{}
	if testID > 0 {
		query = `SELECT ` + candidateColumns + ` FROM candidates WHERE test_id = ? ORDER BY created DESC`
		args = append(args, testID)
	}

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		c, err := scanCandidateRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) DeleteCandidate(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM candidates WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepo) SaveSubmission(ctx context.Context, id int64, answers []int, score, total int, completedAt int64) error {
	b, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	_, err = r.conn.Exec(ctx, `UPDATE candidates SET answers = ?, score = ?, total_questions = ?, status = ?, completed_at = ?, updated = ? WHERE id = ?`,
		string(b), score, total, models.StatusCompleted, completedAt, now(), id)
	return err
}

func (r *SQLiteRepo) SetLockout(ctx context.Context, id int64, reason string, answers []int) error {
	var ans any
	if answers != nil {
		b, err := json.Marshal(answers)
		if err != nil {
			return fmt.Errorf("encode answers: %w", err)
		}
		ans = string(b)
	}

	_, err := r.conn.Exec(ctx, `UPDATE candidates SET status = ?, lockout_reason = ?, answers = COALESCE(?, answers), updated = ? WHERE id = ?`,
		models.StatusLockedOut, reason, ans, now(), id)
	return err
}

func (r *SQLiteRepo) SetReappearanceRequested(ctx context.Context, id int64, at int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE candidates SET status = ?, reappearance_requested_at = ?, updated = ? WHERE id = ?`,
		models.StatusReappearanceRequested, at, now(), id)
	return err
}

func (r *SQLiteRepo) ApproveReappearance(ctx context.Context, id, adminID int64, at int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE candidates SET status = ?, reappearance_approved_at = ?, reappearance_approved_by = ?, lockout_reason = NULL, updated = ? WHERE id = ?`,
		models.StatusInProgress, at, adminID, now(), id)
	return err
}

// Rearm resets the row for a fresh attempt. Clearing reappearance_approved_at
// here is what makes the approval a one-shot gate.
func (r *SQLiteRepo) Rearm(ctx context.Context, id int64, questions []models.Question, startedAt int64) error {
	b, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode assigned questions: %w", err)
	}

	_, err = r.conn.Exec(ctx, `UPDATE candidates SET assigned_questions = ?, answers = NULL, score = 0, total_questions = ?, status = ?, lockout_reason = NULL, reappearance_requested_at = NULL, reappearance_approved_at = NULL, reappearance_approved_by = NULL, started_at = ?, completed_at = NULL, updated = ? WHERE id = ?`,
		string(b), len(questions), models.StatusInProgress, startedAt, now(), id)
	return err
}

func scanCandidate(row *sql.Row) (*models.Candidate, error) {
	c, err := scanCandidateRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func scanCandidateRow(s scanner) (*models.Candidate, error) {
	var c models.Candidate
	var questions string
	var answers, lockoutReason sql.NullString
	var requestedAt, approvedAt, approvedBy, completedAt sql.NullInt64
	if err := s.Scan(&c.ID, &c.TestID, &c.Name, &c.Email, &questions, &answers, &c.Score, &c.TotalQuestions, &c.Status, &lockoutReason, &requestedAt, &approvedAt, &approvedBy, &c.StartedAt, &completedAt, &c.Created, &c.Updated); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(questions), &c.AssignedQuestions); err != nil {
		return nil, fmt.Errorf("decode assigned questions for candidate %d: %w", c.ID, err)
	}
	if answers.Valid {
		if err := json.Unmarshal([]byte(answers.String), &c.Answers); err != nil {
			return nil, fmt.Errorf("decode answers for candidate %d: %w", c.ID, err)
		}
	}
	if lockoutReason.Valid {
		c.LockoutReason = lockoutReason.String
	}
	if requestedAt.Valid {
		c.ReappearanceRequestedAt = &requestedAt.Int64
	}
	if approvedAt.Valid {
		c.ReappearanceApprovedAt = &approvedAt.Int64
	}
	if approvedBy.Valid {
		c.ReappearanceApprovedBy = &approvedBy.Int64
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Int64
	}

	return &c, nil
}
