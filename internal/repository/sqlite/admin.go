package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hirevet/hirevet/pkg/models"
)

func (r *SQLiteRepo) CreateAdmin(ctx context.Context, a *models.Admin) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("admin is nil")
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO admins (name, email, password_hash, created, updated) VALUES (?, ?, ?, ?, ?)`, a.Name, a.Email, a.PasswordHash, ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetAdminByID(ctx context.Context, id int64) (*models.Admin, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, email, password_hash, created, updated FROM admins WHERE id = ?`, id)
	return scanAdmin(row)
}

func (r *SQLiteRepo) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, email, password_hash, created, updated FROM admins WHERE email = ?`, email)
	return scanAdmin(row)
}

func scanAdmin(row *sql.Row) (*models.Admin, error) {
	var a models.Admin
	var pw sql.NullString
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &pw, &a.Created, &a.Updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	if pw.Valid {
		a.PasswordHash = pw.String
	}

	return &a, nil
}
