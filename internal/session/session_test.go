package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hirevet/hirevet/internal/session"
	"github.com/hirevet/hirevet/pkg/models"
	"github.com/hirevet/hirevet/pkg/repository/mock"
)

func newService(t *testing.T, poolSize int) (*session.Service, *mock.Mocks) {
	t.Helper()
	m := mock.NewMocks()
	if _, err := m.TestRepo.CreateTest(context.Background(), &models.Test{
		PostingID:  1,
		Complexity: models.ComplexityMedium,
		Questions:  pool(poolSize),
	}); err != nil {
		t.Fatalf("create test: %v", err)
	}

	cfg := session.DefaultConfig()
	svc := session.NewService(m.TestRepo, m.CandidateRepo, nil, cfg, nil)
	return svc, m
}

func TestStartNewAttempt(t *testing.T) {
	svc, _ := newService(t, 50)
	ctx := context.Background()

	res, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.CandidateID == 0 {
		t.Fatalf("expected candidate id")
	}
	if len(res.Questions) != 21 {
		t.Fatalf("expected 21 assigned questions, got %d", len(res.Questions))
	}
	if res.Resumed {
		t.Fatalf("fresh attempt reported as resumed")
	}
	if res.Deadline.Before(time.Now()) {
		t.Fatalf("deadline already in the past")
	}
}

func TestStartSmallPool(t *testing.T) {
	svc, _ := newService(t, 2)
	ctx := context.Background()

	res, err := svc.Start(ctx, 1, "Bob", "bob@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(res.Questions) != 2 {
		t.Fatalf("expected the whole 2-question pool, got %d", len(res.Questions))
	}
}

func TestStartUnknownTest(t *testing.T) {
	svc, _ := newService(t, 50)

	_, err := svc.Start(context.Background(), 99, "Alice", "alice@example.com")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStartResumesWithFrozenSubset(t *testing.T) {
	svc, _ := newService(t, 50)
	ctx := context.Background()

	first, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("first start: %v", err)
	}

	second, err := svc.Start(ctx, 1, "Alice", "ALICE@example.com ")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !second.Resumed {
		t.Fatalf("expected resumed attempt")
	}
	if second.CandidateID != first.CandidateID {
		t.Fatalf("resume created a new attempt: %d vs %d", second.CandidateID, first.CandidateID)
	}
	for i := range first.Questions {
		if second.Questions[i].Text != first.Questions[i].Text {
			t.Fatalf("subset changed on resume at position %d", i)
		}
	}
}

func TestStartAfterSubmitRejected(t *testing.T) {
	svc, _ := newService(t, 50)
	ctx := context.Background()

	res, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Submit(ctx, res.CandidateID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.Start(ctx, 1, "Alice", "alice@example.com"); !errors.Is(err, session.ErrAttempted) {
		t.Fatalf("expected ErrAttempted, got %v", err)
	}
}

func TestConcurrentStartSingleAttempt(t *testing.T) {
	svc, m := newService(t, 50)
	ctx := context.Background()

	const n = 10
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
			if err != nil {
				t.Errorf("concurrent start: %v", err)
				return
			}
			ids[i] = res.CandidateID
		}()
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent starts produced distinct attempts: %v", ids)
		}
	}

	rows, err := m.CandidateRepo.ListCandidates(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected a single attempt row, got %d", len(rows))
	}
}

func TestSubmitScoresAndFinalizes(t *testing.T) {
	svc, m := newService(t, 30)
	ctx := context.Background()

	res, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	answers := make([]int, len(res.Questions))
	for i, q := range res.Questions {
		answers[i] = q.Correct
	}

	sub, err := svc.Submit(ctx, res.CandidateID, answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Score != len(res.Questions) || sub.Percentage != 100 || !sub.Passed {
		t.Fatalf("perfect submission not scored as pass: %+v", sub)
	}

	cand, err := m.CandidateRepo.GetCandidateByID(ctx, res.CandidateID)
	if err != nil {
		t.Fatalf("get candidate: %v", err)
	}
	if cand.Status != models.StatusCompleted {
		t.Fatalf("expected completed status, got %q", cand.Status)
	}
	if cand.CompletedAt == nil {
		t.Fatalf("completed_at not set")
	}
}

func TestSubmitTwiceRejected(t *testing.T) {
	svc, _ := newService(t, 30)
	ctx := context.Background()

	res, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Submit(ctx, res.CandidateID, nil); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	if _, err := svc.Submit(ctx, res.CandidateID, nil); !errors.Is(err, session.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestSubmitUnknownCandidate(t *testing.T) {
	svc, _ := newService(t, 30)

	if _, err := svc.Submit(context.Background(), 42, nil); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitBelowThresholdFails(t *testing.T) {
	svc, _ := newService(t, 30)
	ctx := context.Background()

	res, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// answer only the first few correctly
	answers := make([]int, len(res.Questions))
	for i, q := range res.Questions {
		if i < 5 {
			answers[i] = q.Correct
		} else {
			answers[i] = (q.Correct + 1) % 4
		}
	}

	sub, err := svc.Submit(ctx, res.CandidateID, answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Passed {
		t.Fatalf("5/%d passed the 85%% threshold: %+v", sub.Total, sub)
	}
}

func TestLockoutAndReappearanceFlow(t *testing.T) {
	svc, m := newService(t, 50)
	ctx := context.Background()

	res, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := res.CandidateID

	if err := svc.Lockout(ctx, id, "tab switch", []int{0, 1}); err != nil {
		t.Fatalf("lockout: %v", err)
	}
	cand, _ := m.CandidateRepo.GetCandidateByID(ctx, id)
	if cand.Status != models.StatusLockedOut || cand.LockoutReason != "tab switch" {
		t.Fatalf("lockout not recorded: %+v", cand)
	}

	// submit while locked out is not allowed
	if _, err := svc.Submit(ctx, id, nil); !errors.Is(err, session.ErrAttempted) {
		t.Fatalf("expected ErrAttempted while locked out, got %v", err)
	}

	// a second lockout is an invalid transition
	if err := svc.Lockout(ctx, id, "again", nil); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	// start while locked out without approval is blocked
	if _, err := svc.Start(ctx, 1, "Alice", "alice@example.com"); !errors.Is(err, session.ErrAttempted) {
		t.Fatalf("expected ErrAttempted, got %v", err)
	}

	if err := svc.RequestReappearance(ctx, id); err != nil {
		t.Fatalf("request reappearance: %v", err)
	}
	cand, _ = m.CandidateRepo.GetCandidateByID(ctx, id)
	if cand.Status != models.StatusReappearanceRequested {
		t.Fatalf("expected reappearance_requested, got %q", cand.Status)
	}

	// requesting twice is invalid, status already moved on
	if err := svc.RequestReappearance(ctx, id); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	if err := svc.ApproveReappearance(ctx, id, 7); err != nil {
		t.Fatalf("approve: %v", err)
	}
	cand, _ = m.CandidateRepo.GetCandidateByID(ctx, id)
	if cand.ReappearanceApprovedAt == nil || cand.ReappearanceApprovedBy == nil || *cand.ReappearanceApprovedBy != 7 {
		t.Fatalf("approval not recorded: %+v", cand)
	}

	// next start consumes the approval and re-arms with a fresh attempt
	again, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("restart after approval: %v", err)
	}
	if again.CandidateID != id {
		t.Fatalf("re-arm created a new row: %d vs %d", again.CandidateID, id)
	}
	if again.Resumed {
		t.Fatalf("re-armed attempt reported as resumed")
	}
	cand, _ = m.CandidateRepo.GetCandidateByID(ctx, id)
	if cand.Status != models.StatusInProgress || cand.ReappearanceApprovedAt != nil {
		t.Fatalf("approval flag not consumed: %+v", cand)
	}

	// the fresh attempt can be submitted normally
	if _, err := svc.Submit(ctx, id, nil); err != nil {
		t.Fatalf("submit after re-arm: %v", err)
	}
}

func TestRequestReappearanceRequiresLockout(t *testing.T) {
	svc, _ := newService(t, 50)
	ctx := context.Background()

	res, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.RequestReappearance(ctx, res.CandidateID); !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for in-progress attempt, got %v", err)
	}
}

func TestApproveReappearanceFromCompleted(t *testing.T) {
	svc, _ := newService(t, 50)
	ctx := context.Background()

	res, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Submit(ctx, res.CandidateID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// an admin can grant a retake to a candidate who already completed
	if err := svc.ApproveReappearance(ctx, res.CandidateID, 3); err != nil {
		t.Fatalf("approve completed attempt: %v", err)
	}

	again, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if len(again.Questions) != 21 {
		t.Fatalf("expected a fresh 21-question subset, got %d", len(again.Questions))
	}
}

func TestDeadlineEnforcement(t *testing.T) {
	m := mock.NewMocks()
	ctx := context.Background()
	if _, err := m.TestRepo.CreateTest(ctx, &models.Test{PostingID: 1, Questions: pool(30)}); err != nil {
		t.Fatalf("create test: %v", err)
	}

	cfg := session.DefaultConfig()
	cfg.Duration = 10 * time.Millisecond
	cfg.Grace = 0
	svc := session.NewService(m.TestRepo, m.CandidateRepo, nil, cfg, nil)

	res, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := svc.Submit(ctx, res.CandidateID, nil); !errors.Is(err, session.ErrTimeExpired) {
		t.Fatalf("expected ErrTimeExpired, got %v", err)
	}
	cand, _ := m.CandidateRepo.GetCandidateByID(ctx, res.CandidateID)
	if cand.Status != models.StatusLockedOut {
		t.Fatalf("late submit did not lock the attempt: %q", cand.Status)
	}

	// a late start also locks instead of resuming
	m2 := mock.NewMocks()
	if _, err := m2.TestRepo.CreateTest(ctx, &models.Test{PostingID: 1, Questions: pool(30)}); err != nil {
		t.Fatalf("create test: %v", err)
	}
	svc2 := session.NewService(m2.TestRepo, m2.CandidateRepo, nil, cfg, nil)
	if _, err := svc2.Start(ctx, 1, "Bob", "bob@example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := svc2.Start(ctx, 1, "Bob", "bob@example.com"); !errors.Is(err, session.ErrTimeExpired) {
		t.Fatalf("expected ErrTimeExpired on late resume, got %v", err)
	}
}

func TestExpireOverdue(t *testing.T) {
	m := mock.NewMocks()
	ctx := context.Background()
	if _, err := m.TestRepo.CreateTest(ctx, &models.Test{PostingID: 1, Questions: pool(30)}); err != nil {
		t.Fatalf("create test: %v", err)
	}

	cfg := session.DefaultConfig()
	cfg.Duration = 10 * time.Millisecond
	cfg.Grace = 0
	svc := session.NewService(m.TestRepo, m.CandidateRepo, nil, cfg, nil)

	res, err := svc.Start(ctx, 1, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// not yet overdue, must be a no-op
	if err := svc.ExpireOverdue(ctx, res.CandidateID); err != nil {
		t.Fatalf("expire: %v", err)
	}
	cand, _ := m.CandidateRepo.GetCandidateByID(ctx, res.CandidateID)
	if cand.Status != models.StatusInProgress {
		t.Fatalf("early expiry changed status to %q", cand.Status)
	}

	time.Sleep(20 * time.Millisecond)
	if err := svc.ExpireOverdue(ctx, res.CandidateID); err != nil {
		t.Fatalf("expire: %v", err)
	}
	cand, _ = m.CandidateRepo.GetCandidateByID(ctx, res.CandidateID)
	if cand.Status != models.StatusLockedOut {
		t.Fatalf("overdue attempt not locked: %q", cand.Status)
	}

	// unknown candidate is a no-op, not an error
	if err := svc.ExpireOverdue(ctx, 999); err != nil {
		t.Fatalf("expire unknown: %v", err)
	}
}
