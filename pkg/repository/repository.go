package repository

import (
	"context"

	"github.com/hirevet/hirevet/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Lookups return (nil, nil) when no row matches.

type AdminRepo interface {
	CreateAdmin(ctx context.Context, a *models.Admin) (int64, error)
	GetAdminByID(ctx context.Context, id int64) (*models.Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
}

type PostingRepo interface {
	CreatePosting(ctx context.Context, p *models.Posting) (int64, error)
	GetPostingByID(ctx context.Context, id int64) (*models.Posting, error)
	ListPostings(ctx context.Context, limit, offset int) ([]models.Posting, error)
	UpdatePosting(ctx context.Context, p *models.Posting) error
	DeletePosting(ctx context.Context, id int64) error
}

type TestRepo interface {
	CreateTest(ctx context.Context, t *models.Test) (int64, error)
	GetTestByID(ctx context.Context, id int64) (*models.Test, error)
	GetTestByShortCode(ctx context.Context, code string) (*models.Test, error)
	GetTestByLinkToken(ctx context.Context, token string) (*models.Test, error)
	ListTests(ctx context.Context, postingID int64) ([]models.Test, error)
	SetLinkToken(ctx context.Context, id int64, token string) error
	DeleteTest(ctx context.Context, id int64) error
}

type CandidateRepo interface {
	// CreateIfAbsent inserts the attempt unless one already exists for the
	// (test, email) pair. The bool reports whether a new row was created;
	// when false the returned id is the existing row's id.
	CreateIfAbsent(ctx context.Context, c *models.Candidate) (int64, bool, error)
	GetCandidateByID(ctx context.Context, id int64) (*models.Candidate, error)
	GetByTestAndEmail(ctx context.Context, testID int64, email string) (*models.Candidate, error)
	ListCandidates(ctx context.Context, testID int64) ([]models.Candidate, error)
	DeleteCandidate(ctx context.Context, id int64) error

	SaveSubmission(ctx context.Context, id int64, answers []int, score, total int, completedAt int64) error
	SetLockout(ctx context.Context, id int64, reason string, answers []int) error
	SetReappearanceRequested(ctx context.Context, id int64, at int64) error
	ApproveReappearance(ctx context.Context, id, adminID int64, at int64) error
	// Rearm resets the attempt for a fresh run: new question subset, status
	// back to in_progress, score/answers/lockout/approval fields cleared.
	Rearm(ctx context.Context, id int64, questions []models.Question, startedAt int64) error
}

type SchemaRepo interface {
	CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error)
	GetSchemaByVersion(ctx context.Context, version string) (*models.Schema, error)
	ListSchemas(ctx context.Context) ([]models.Schema, error)
	DeleteSchema(ctx context.Context, version string) error
}

type TemplateRepo interface {
	CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) (int64, error)
	GetTemplate(ctx context.Context, name, version string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
	DeleteTemplate(ctx context.Context, name, version string) error
}
