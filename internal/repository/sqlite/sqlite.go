package sqlite

import (
	"log/slog"
	"time"

	"github.com/hirevet/hirevet/internal/db"
	"github.com/hirevet/hirevet/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.AdminRepo = (*SQLiteRepo)(nil)
var _ repository.PostingRepo = (*SQLiteRepo)(nil)
var _ repository.TestRepo = (*SQLiteRepo)(nil)
var _ repository.CandidateRepo = (*SQLiteRepo)(nil)
var _ repository.SchemaRepo = (*SQLiteRepo)(nil)
var _ repository.TemplateRepo = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}
