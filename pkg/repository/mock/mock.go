package mock

import (
	"context"
	"sync"

	"github.com/hirevet/hirevet/pkg/models"
)

// Test helpers and mocks
type Mocks struct {
	AdminRepo     *mockAdminRepo
	PostingRepo   *mockPostingRepo
	TestRepo      *MockTestRepo
	CandidateRepo *MockCandidateRepo
}

func NewMocks() *Mocks {
	return &Mocks{
		AdminRepo:     &mockAdminRepo{},
		PostingRepo:   &mockPostingRepo{},
		TestRepo:      &MockTestRepo{},
		CandidateRepo: NewMockCandidateRepo(),
	}
}

type mockAdminRepo struct {
	Stored    *models.Admin
	CreateErr error
}

func (m *mockAdminRepo) CreateAdmin(ctx context.Context, a *models.Admin) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	m.Stored = &models.Admin{ID: 1, Name: a.Name, Email: a.Email, PasswordHash: a.PasswordHash}
	return 1, nil
}

func (m *mockAdminRepo) GetAdminByID(ctx context.Context, id int64) (*models.Admin, error) {
	if m.Stored != nil && m.Stored.ID == id {
		return m.Stored, nil
	}
	return nil, nil
}

func (m *mockAdminRepo) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	if m.Stored != nil && m.Stored.Email == email {
		return m.Stored, nil
	}
	return nil, nil
}

type mockPostingRepo struct {
	Stored    *models.Posting
	CreateErr error
}

func (m *mockPostingRepo) CreatePosting(ctx context.Context, p *models.Posting) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	cp := *p
	cp.ID = 1
	m.Stored = &cp
	return 1, nil
}

func (m *mockPostingRepo) GetPostingByID(ctx context.Context, id int64) (*models.Posting, error) {
	if m.Stored != nil && m.Stored.ID == id {
		return m.Stored, nil
	}
	return nil, nil
}

func (m *mockPostingRepo) ListPostings(ctx context.Context, limit, offset int) ([]models.Posting, error) {
	if m.Stored == nil || offset > 0 {
		return nil, nil
	}
	return []models.Posting{*m.Stored}, nil
}

func (m *mockPostingRepo) UpdatePosting(ctx context.Context, p *models.Posting) error {
	cp := *p
	m.Stored = &cp
	return nil
}

func (m *mockPostingRepo) DeletePosting(ctx context.Context, id int64) error {
	if m.Stored != nil && m.Stored.ID == id {
		m.Stored = nil
	}
	return nil
}

// MockTestRepo serves a fixed set of tests keyed by id.
type MockTestRepo struct {
	Tests     map[int64]*models.Test
	CreateErr error
	nextID    int64
}

func (m *MockTestRepo) CreateTest(ctx context.Context, t *models.Test) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	if m.Tests == nil {
		m.Tests = map[int64]*models.Test{}
	}
	m.nextID++
	cp := *t
	cp.ID = m.nextID
	m.Tests[cp.ID] = &cp
	return cp.ID, nil
}

func (m *MockTestRepo) GetTestByID(ctx context.Context, id int64) (*models.Test, error) {
	return m.Tests[id], nil
}

func (m *MockTestRepo) GetTestByShortCode(ctx context.Context, code string) (*models.Test, error) {
	for _, t := range m.Tests {
		if t.ShortCode == code {
			return t, nil
		}
	}
	return nil, nil
}

func (m *MockTestRepo) GetTestByLinkToken(ctx context.Context, token string) (*models.Test, error) {
	if token == "" {
		return nil, nil
	}
	for _, t := range m.Tests {
		if t.LinkToken == token {
			return t, nil
		}
	}
	return nil, nil
}

func (m *MockTestRepo) ListTests(ctx context.Context, postingID int64) ([]models.Test, error) {
	var out []models.Test
	for _, t := range m.Tests {
		if postingID == 0 || t.PostingID == postingID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MockTestRepo) SetLinkToken(ctx context.Context, id int64, token string) error {
	if t, ok := m.Tests[id]; ok {
		t.LinkToken = token
	}
	return nil
}

func (m *MockTestRepo) DeleteTest(ctx context.Context, id int64) error {
	delete(m.Tests, id)
	return nil
}

// MockCandidateRepo is an in-memory candidate store honoring the unique
// (test, email) rule, so the session state machine can be exercised without
// a database.
type MockCandidateRepo struct {
	mu     sync.Mutex
	rows   map[int64]*models.Candidate
	nextID int64

	CreateErr error
}

func NewMockCandidateRepo() *MockCandidateRepo {
	return &MockCandidateRepo{rows: map[int64]*models.Candidate{}}
}

func (m *MockCandidateRepo) CreateIfAbsent(ctx context.Context, c *models.Candidate) (int64, bool, error) {
	if m.CreateErr != nil {
		return 0, false, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, row := range m.rows {
		if row.TestID == c.TestID && row.Email == c.Email {
			return id, false, nil
		}
	}
	m.nextID++
	cp := *c
	cp.ID = m.nextID
	cp.Status = models.StatusInProgress
	m.rows[cp.ID] = &cp
	return cp.ID, true, nil
}

func (m *MockCandidateRepo) GetCandidateByID(ctx context.Context, id int64) (*models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (m *MockCandidateRepo) GetByTestAndEmail(ctx context.Context, testID int64, email string) (*models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TestID == testID && row.Email == email {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockCandidateRepo) ListCandidates(ctx context.Context, testID int64) ([]models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Candidate
	for _, row := range m.rows {
		if testID == 0 || row.TestID == testID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *MockCandidateRepo) DeleteCandidate(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *MockCandidateRepo) SaveSubmission(ctx context.Context, id int64, answers []int, score, total int, completedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	row.Answers = answers
	row.Score = score
	row.TotalQuestions = total
	row.Status = models.StatusCompleted
	row.CompletedAt = &completedAt
	return nil
}

func (m *MockCandidateRepo) SetLockout(ctx context.Context, id int64, reason string, answers []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	row.Status = models.StatusLockedOut
	row.LockoutReason = reason
	if answers != nil {
		row.Answers = answers
	}
	return nil
}

func (m *MockCandidateRepo) SetReappearanceRequested(ctx context.Context, id int64, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	row.Status = models.StatusReappearanceRequested
	row.ReappearanceRequestedAt = &at
	return nil
}

func (m *MockCandidateRepo) ApproveReappearance(ctx context.Context, id, adminID int64, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	row.Status = models.StatusInProgress
	row.LockoutReason = ""
	row.ReappearanceApprovedAt = &at
	row.ReappearanceApprovedBy = &adminID
	return nil
}

func (m *MockCandidateRepo) Rearm(ctx context.Context, id int64, questions []models.Question, startedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	row.AssignedQuestions = questions
	row.Answers = nil
	row.Score = 0
	row.TotalQuestions = 0
	row.Status = models.StatusInProgress
	row.LockoutReason = ""
	row.ReappearanceRequestedAt = nil
	row.ReappearanceApprovedAt = nil
	row.ReappearanceApprovedBy = nil
	row.StartedAt = startedAt
	row.CompletedAt = nil
	return nil
}
