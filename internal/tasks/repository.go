package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hirevet/hirevet/internal/db"
)

// Repository persists tasks in the task_queue table.
type Repository struct {
	db *db.DB
}

func NewRepository(d *db.DB) *Repository { return &Repository{db: d} }

// Enqueue inserts a task and returns the new ID.
func (r *Repository) Enqueue(ctx context.Context, t *Task) (int64, error) {
	payload := string(t.Payload)
	if t.MaxAttempts == 0 {
		t.MaxAttempts = 5
	}
	if t.ScheduledAt.IsZero() {
		t.ScheduledAt = time.Now()
	}
	now := time.Now().UTC().UnixMilli()
	q := `INSERT INTO task_queue(type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES(?,?,?,?,?,?,?,?,?)`
	res, err := r.db.Exec(ctx, q, t.Type, payload, "queued", t.Attempts, t.MaxAttempts, t.Priority, t.ScheduledAt.UTC().Unix(), now, now)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}
	return res.LastInsertId()
}

// FetchNext fetches the next runnable task respecting priority and schedule.
func (r *Repository) FetchNext(ctx context.Context) (*Task, error) {
	q := `SELECT id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated FROM task_queue WHERE (status = 'queued' OR status = 'retry') AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ? ORDER BY priority ASC, scheduled_at ASC LIMIT 1`
	now := time.Now().UTC().Unix()
	row := r.db.QueryRow(ctx, q, now, now)
	var (
		id          int64
		typ         string
		payload     sql.NullString
		status      string
		attempts    int
		maxAttempts int
		priority    int
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		created     int64
		updated     int64
	)
	if err := row.Scan(&id, &typ, &payload, &status, &attempts, &maxAttempts, &priority, &scheduledAt, &nextTry, &lastError, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch next task: %w", err)
	}
	t := &Task{
		ID:          id,
		Type:        typ,
		Status:      status,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		Priority:    priority,
		ScheduledAt: time.Unix(scheduledAt, 0),
		Created:     time.UnixMilli(created),
		Updated:     time.UnixMilli(updated),
	}
	if payload.Valid {
		t.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		nt := time.Unix(nextTry.Int64, 0)
		t.NextTryAt = &nt
	}
	if lastError.Valid {
		t.LastError = lastError.String
	}
	return t, nil
}

// MarkRunning claims a task so other workers skip it. The status guard makes
// the claim atomic: only one worker's update affects a row.
func (r *Repository) MarkRunning(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.Exec(ctx, `UPDATE task_queue SET status = 'running', updated = ? WHERE id = ? AND status IN ('queued', 'retry')`, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateTask updates attempts, status, next_try_at and last_error.
func (r *Repository) UpdateTask(ctx context.Context, t *Task) error {
	var nextTry any
	if t.NextTryAt != nil {
		nextTry = t.NextTryAt.Unix()
	}
	q := `UPDATE task_queue SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	_, err := r.db.Exec(ctx, q, t.Status, t.Attempts, nextTry, t.LastError, time.Now().UTC().UnixMilli(), t.ID)
	return err
}

// MoveToDeadLetter moves a task to dead_letter_tasks and deletes the original.
func (r *Repository) MoveToDeadLetter(ctx context.Context, t *Task) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	payload := string(t.Payload)
	insert := `INSERT INTO dead_letter_tasks(task_id, type, payload, attempts, last_error, failed_at) VALUES(?,?,?,?,?,?)`
	if _, err := tx.ExecContext(ctx, insert, t.ID, t.Type, payload, t.Attempts, t.LastError, time.Now().UTC().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_queue WHERE id = ?`, t.ID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
