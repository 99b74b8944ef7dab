package models

// Domain models matching the database schema in db/migrations/0001_init.sql.
// Timestamps are unix milliseconds UTC; optional columns are pointers.

type Admin struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Created      int64  `json:"created" db:"created"`
	Updated      int64  `json:"updated" db:"updated"`
}

// Posting is a job opening that tests are generated for.
type Posting struct {
	ID          int64    `json:"id" db:"id"`
	Title       string   `json:"title" db:"title"`
	Description string   `json:"description" db:"description"`
	Experience  string   `json:"experience,omitempty" db:"experience"`
	Skills      []string `json:"skills" db:"skills"`
	Created     int64    `json:"created" db:"created"`
	Updated     int64    `json:"updated" db:"updated"`
}

// Complexity levels accepted for test generation.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// Question is a single multiple-choice question. Correct is the zero-based
// index into Options; answer letters exist only at the LLM and export edges.
type Question struct {
	Text        string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
	Explanation string   `json:"explanation,omitempty"`
}

// Test holds the full generated question pool for a posting. The pool is
// stored as a JSON blob; candidates never see it directly, only a sampled
// subset with the correct indices stripped.
type Test struct {
	ID         int64      `json:"id" db:"id"`
	PostingID  int64      `json:"posting_id" db:"posting_id"`
	Complexity string     `json:"complexity" db:"complexity"`
	Questions  []Question `json:"questions,omitempty"`
	ShortCode  string     `json:"short_code,omitempty" db:"short_code"`
	LinkToken  string     `json:"link_token,omitempty" db:"link_token"`
	Created    int64      `json:"created" db:"created"`
}

// Candidate attempt statuses.
const (
	StatusInProgress            = "in_progress"
	StatusCompleted             = "completed"
	StatusLockedOut             = "locked_out"
	StatusReappearanceRequested = "reappearance_requested"
)

// Candidate is one (email, test) attempt. AssignedQuestions is a frozen
// snapshot sampled from the test pool at start time; Answers is position
// aligned to it.
type Candidate struct {
	ID                      int64      `json:"id" db:"id"`
	TestID                  int64      `json:"test_id" db:"test_id"`
	Name                    string     `json:"name" db:"name"`
	Email                   string     `json:"email" db:"email"`
	AssignedQuestions       []Question `json:"assigned_questions,omitempty"`
	Answers                 []int      `json:"answers,omitempty"`
	Score                   int        `json:"score" db:"score"`
	TotalQuestions          int        `json:"total_questions" db:"total_questions"`
	Status                  string     `json:"status" db:"status"`
	LockoutReason           string     `json:"lockout_reason,omitempty" db:"lockout_reason"`
	ReappearanceRequestedAt *int64     `json:"reappearance_requested_at,omitempty" db:"reappearance_requested_at"`
	ReappearanceApprovedAt  *int64     `json:"reappearance_approved_at,omitempty" db:"reappearance_approved_at"`
	ReappearanceApprovedBy  *int64     `json:"reappearance_approved_by,omitempty" db:"reappearance_approved_by"`
	StartedAt               int64      `json:"started_at" db:"started_at"`
	CompletedAt             *int64     `json:"completed_at,omitempty" db:"completed_at"`
	Created                 int64      `json:"created" db:"created"`
	Updated                 int64      `json:"updated" db:"updated"`
}

type Schema struct {
	ID          int64  `json:"id" db:"id"`
	Version     string `json:"version" db:"version"`
	Description string `json:"description,omitempty" db:"description"`
	SchemaJSON  string `json:"schema_json" db:"schema_json"`
	Created     int64  `json:"created" db:"created"`
	Updated     int64  `json:"updated" db:"updated"`
}

type Template struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Version     string  `json:"version" db:"version"`
	TemplateTxt string  `json:"template_text" db:"template_text"`
	SchemaVer   *string `json:"schema_version,omitempty" db:"schema_version"`
	Metadata    *string `json:"metadata,omitempty" db:"metadata"`
	Created     int64   `json:"created" db:"created"`
	Updated     int64   `json:"updated" db:"updated"`
}
