package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hirevet/hirevet/pkg/models"
)

const testColumns = `id, posting_id, complexity, questions, short_code, link_token, created`

func (r *SQLiteRepo) CreateTest(ctx context.Context, t *models.Test) (int64, error) {
	if t == nil {
		return 0, fmt.Errorf("test is nil")
	}

	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return 0, fmt.Errorf("encode questions: %w", err)
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO tests (posting_id, complexity, questions, short_code, link_token, created) VALUES (?, ?, ?, ?, ?, ?)`,
		t.PostingID, t.Complexity, string(questions), nullable(t.ShortCode), nullable(t.LinkToken), now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetTestByID(ctx context.Context, id int64) (*models.Test, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE id = ?`, id)
	return scanTest(row)
}

func (r *SQLiteRepo) GetTestByShortCode(ctx context.Context, code string) (*models.Test, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE short_code = ?`, code)
	return scanTest(row)
}

func (r *SQLiteRepo) GetTestByLinkToken(ctx context.Context, token string) (*models.Test, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE link_token = ?`, token)
	return scanTest(row)
}

// ListTests returns tests, optionally filtered by posting. The question pools
// are included; callers strip them before handing tests to candidates.
func (r *SQLiteRepo) ListTests(ctx context.Context, postingID int64) ([]models.Test, error) {
	query := `SELECT ` + testColumns + ` FROM tests ORDER BY created DESC`
	args := []any{}
	if postingID > 0 {
		query = `SELECT ` + testColumns + ` FROM tests WHERE posting_id = ? ORDER BY created DESC`
		args = append(args, postingID)
	}

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Test
	for rows.Next() {
		t, err := scanTestRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) SetLinkToken(ctx context.Context, id int64, token string) error {
	_, err := r.conn.Exec(ctx, `UPDATE tests SET link_token = ? WHERE id = ?`, token, id)
	return err
}

func (r *SQLiteRepo) DeleteTest(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM tests WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTest(row *sql.Row) (*models.Test, error) {
	t, err := scanTestRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func scanTestRow(s scanner) (*models.Test, error) {
	var t models.Test
	var questions string
	var shortCode, linkToken sql.NullString
	if err := s.Scan(&t.ID, &t.PostingID, &t.Complexity, &questions, &shortCode, &linkToken, &t.Created); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(questions), &t.Questions); err != nil {
		return nil, fmt.Errorf("decode questions for test %d: %w", t.ID, err)
	}
	if shortCode.Valid {
		t.ShortCode = shortCode.String
	}
	if linkToken.Valid {
		t.LinkToken = linkToken.String
	}

	return &t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
