package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hirevet/hirevet/pkg/models"
)

func (r *SQLiteRepo) CreatePosting(ctx context.Context, p *models.Posting) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("posting is nil")
	}

	skills, err := marshalSkills(p.Skills)
	if err != nil {
		return 0, err
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO postings (title, description, experience, skills, created, updated) VALUES (?, ?, ?, ?, ?, ?)`, p.Title, p.Description, p.Experience, skills, ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetPostingByID(ctx context.Context, id int64) (*models.Posting, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, title, description, experience, skills, created, updated FROM postings WHERE id = ?`, id)

	var p models.Posting
	var experience sql.NullString
	var skills string
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &experience, &skills, &p.Created, &p.Updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	if experience.Valid {
		p.Experience = experience.String
	}
	if err := json.Unmarshal([]byte(skills), &p.Skills); err != nil {
		return nil, fmt.Errorf("decode skills for posting %d: %w", p.ID, err)
	}

	return &p, nil
}

func (r *SQLiteRepo) ListPostings(ctx context.Context, limit, offset int) ([]models.Posting, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, title, description, experience, skills, created, updated FROM postings ORDER BY created DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Posting
	for rows.Next() {
		var p models.Posting
		var experience sql.NullString
		var skills string
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &experience, &skills, &p.Created, &p.Updated); err != nil {
			return nil, err
		}

		if experience.Valid {
			p.Experience = experience.String
		}
		if err := json.Unmarshal([]byte(skills), &p.Skills); err != nil {
			return nil, fmt.Errorf("decode skills for posting %d: %w", p.ID, err)
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) UpdatePosting(ctx context.Context, p *models.Posting) error {
	if p == nil {
		return fmt.Errorf("posting is nil")
	}

	skills, err := marshalSkills(p.Skills)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, `UPDATE postings SET title = ?, description = ?, experience = ?, skills = ?, updated = ? WHERE id = ?`, p.Title, p.Description, p.Experience, skills, now(), p.ID)
	return err
}

func (r *SQLiteRepo) DeletePosting(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM postings WHERE id = ?`, id)
	return err
}

func marshalSkills(skills []string) (string, error) {
	if skills == nil {
		skills = []string{}
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return "", fmt.Errorf("encode skills: %w", err)
	}

	return string(b), nil
}
