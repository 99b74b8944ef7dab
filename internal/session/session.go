// Package session implements the candidate test-session lifecycle: start,
// resume, submit, lockout and the admin reappearance gate.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hirevet/hirevet/pkg/models"
	"github.com/hirevet/hirevet/pkg/repository"
)

var (
	// ErrNotFound covers a missing test, an empty question pool or a missing candidate.
	ErrNotFound = errors.New("not found")
	// ErrAttempted blocks a second start without an approved reappearance.
	ErrAttempted = errors.New("already attempted or pending approval")
	// ErrAlreadySubmitted rejects a second submit once the attempt is completed.
	ErrAlreadySubmitted = errors.New("already submitted")
	// ErrTimeExpired marks an attempt whose server-side deadline has passed.
	ErrTimeExpired = errors.New("time limit exceeded")
	// ErrNoQuestions rejects a submit for an attempt with no assigned questions.
	ErrNoQuestions = errors.New("no assigned questions")
	// ErrInvalidState rejects a transition the state machine does not allow.
	ErrInvalidState = errors.New("invalid state for operation")
)

const lockoutTimeExpired = "time limit exceeded"

// Config holds the session policy knobs.
type Config struct {
	// SampleSize is the number of questions assigned per attempt.
	SampleSize int `yaml:"sample_size"`
	// PassPercent is the pass threshold in percent.
	PassPercent int `yaml:"pass_percent"`
	// Duration is the time allowed from start to submit.
	Duration time.Duration `yaml:"duration"`
	// Grace is the slack past the deadline still accepted at submit.
	Grace time.Duration `yaml:"grace"`
}

// DefaultConfig returns the standard assessment policy.
func DefaultConfig() Config {
	return Config{
		SampleSize:  21,
		PassPercent: 85,
		Duration:    45 * time.Minute,
		Grace:       2 * time.Minute,
	}
}

// Scheduler enqueues a durable task to run at a given time. Implemented by
// the tasks worker pool.
type Scheduler interface {
	Schedule(ctx context.Context, typ string, payload any, runAt time.Time) (int64, error)
}

// Service drives the test-session state machine over the candidate store.
type Service struct {
	tests      repository.TestRepo
	candidates repository.CandidateRepo
	scheduler  Scheduler
	cfg        Config
	logger     *slog.Logger
}

func NewService(tests repository.TestRepo, candidates repository.CandidateRepo, scheduler Scheduler, cfg Config, logger *slog.Logger) *Service {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultConfig().SampleSize
	}
	if cfg.PassPercent <= 0 {
		cfg.PassPercent = DefaultConfig().PassPercent
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultConfig().Duration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tests: tests, candidates: candidates, scheduler: scheduler, cfg: cfg, logger: logger}
}

// StartResult is the outcome of a start or resume call.
type StartResult struct {
	CandidateID int64
	Questions   []models.Question
	Resumed     bool
	Deadline    time.Time
}

// SubmitResult is the outcome of scoring a submission.
type SubmitResult struct {
	Score      int
	Total      int
	Percentage int
	Passed     bool
}

// Start creates a fresh attempt, resumes an in-progress one, or re-arms an
// attempt whose reappearance was approved. A second start for a finished
// attempt without an approval fails with ErrAttempted.
func (s *Service) Start(ctx context.Context, testID int64, name, email string) (*StartResult, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if testID <= 0 || name == "" || email == "" {
		return nil, fmt.Errorf("%w: test id, name and email are required", ErrInvalidState)
	}

	test, err := s.tests.GetTestByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load test %d: %w", testID, err)
	}
	if test == nil || len(test.Questions) == 0 {
		return nil, ErrNotFound
	}

	startedAt := time.Now().UTC()
	cand := &models.Candidate{
		TestID:            testID,
		Name:              name,
		Email:             email,
		AssignedQuestions: Sample(test.Questions, s.cfg.SampleSize),
		StartedAt:         startedAt.UnixMilli(),
	}

	id, created, err := s.candidates.CreateIfAbsent(ctx, cand)
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	if created {
		s.scheduleExpiry(ctx, id, startedAt)
		s.logger.Info("attempt started",
			slog.Int64("candidate_id", id),
			slog.Int64("test_id", testID),
			slog.Int("questions", len(cand.AssignedQuestions)),
		)
		return &StartResult{CandidateID: id, Questions: cand.AssignedQuestions, Deadline: startedAt.Add(s.cfg.Duration)}, nil
	}

	existing, err := s.candidates.GetCandidateByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load attempt %d: %w", id, err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	// An approved reappearance re-arms the row with a fresh subset and
	// consumes the approval flag.
	if existing.ReappearanceApprovedAt != nil {
		questions := Sample(test.Questions, s.cfg.SampleSize)
		restartedAt := time.Now().UTC()
		if err := s.candidates.Rearm(ctx, id, questions, restartedAt.UnixMilli()); err != nil {
			return nil, fmt.Errorf("rearm attempt %d: %w", id, err)
		}
		s.scheduleExpiry(ctx, id, restartedAt)
		s.logger.Info("attempt re-armed after reappearance approval", slog.Int64("candidate_id", id))
		return &StartResult{CandidateID: id, Questions: questions, Deadline: restartedAt.Add(s.cfg.Duration)}, nil
	}

	if existing.Status == models.StatusInProgress {
		deadline := s.deadline(existing)
		if time.Now().After(deadline) {
			if err := s.candidates.SetLockout(ctx, id, lockoutTimeExpired, nil); err != nil {
				return nil, fmt.Errorf("lock expired attempt %d: %w", id, err)
			}
			return nil, ErrTimeExpired
		}
		// Resume with the frozen subset; never re-sample mid-attempt.
		return &StartResult{CandidateID: id, Questions: existing.AssignedQuestions, Resumed: true, Deadline: deadline}, nil
	}

	return nil, ErrAttempted
}

// Submit scores the attempt and finalizes it. Submitting twice is rejected so
// scoring is at-most-once.
func (s *Service) Submit(ctx context.Context, candidateID int64, answers []int) (*SubmitResult, error) {
	cand, err := s.candidates.GetCandidateByID(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("load attempt %d: %w", candidateID, err)
	}
	if cand == nil {
		return nil, ErrNotFound
	}
	if len(cand.AssignedQuestions) == 0 {
		return nil, ErrNoQuestions
	}
	switch cand.Status {
	case models.StatusCompleted:
		return nil, ErrAlreadySubmitted
	case models.StatusInProgress:
	default:
		return nil, ErrAttempted
	}

	if time.Now().After(s.deadline(cand).Add(s.cfg.Grace)) {
		if err := s.candidates.SetLockout(ctx, candidateID, lockoutTimeExpired, answers); err != nil {
			return nil, fmt.Errorf("lock expired attempt %d: %w", candidateID, err)
		}
		return nil, ErrTimeExpired
	}

	total := len(cand.AssignedQuestions)
	score := Score(cand.AssignedQuestions, answers)
	pct := Percentage(score, total)

	if err := s.candidates.SaveSubmission(ctx, candidateID, answers, score, total, time.Now().UTC().UnixMilli()); err != nil {
		return nil, fmt.Errorf("save submission %d: %w", candidateID, err)
	}

	s.logger.Info("attempt submitted",
		slog.Int64("candidate_id", candidateID),
		slog.Int("score", score),
		slog.Int("total", total),
	)
	return &SubmitResult{Score: score, Total: total, Percentage: pct, Passed: pct >= s.cfg.PassPercent}, nil
}

// Lockout ends an in-progress attempt without scoring, optionally keeping a
// snapshot of the partial answers.
func (s *Service) Lockout(ctx context.Context, candidateID int64, reason string, answers []int) error {
	cand, err := s.candidates.GetCandidateByID(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("load attempt %d: %w", candidateID, err)
	}
	if cand == nil {
		return ErrNotFound
	}
	if cand.Status != models.StatusInProgress {
		return ErrInvalidState
	}
	if strings.TrimSpace(reason) == "" {
		reason = "locked out"
	}

	if err := s.candidates.SetLockout(ctx, candidateID, reason, answers); err != nil {
		return fmt.Errorf("lock attempt %d: %w", candidateID, err)
	}

	s.logger.Info("attempt locked out", slog.Int64("candidate_id", candidateID), slog.String("reason", reason))
	return nil
}

// RequestReappearance flags a locked-out attempt for admin review.
func (s *Service) RequestReappearance(ctx context.Context, candidateID int64) error {
	cand, err := s.candidates.GetCandidateByID(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("load attempt %d: %w", candidateID, err)
	}
	if cand == nil {
		return ErrNotFound
	}
	if cand.Status != models.StatusLockedOut {
		return ErrInvalidState
	}

	return s.candidates.SetReappearanceRequested(ctx, candidateID, time.Now().UTC().UnixMilli())
}

// ApproveReappearance clears a lockout and arms the one-shot approval flag.
// Re-sampling happens lazily on the candidate's next start call, which is the
// mechanism that consumes the flag.
func (s *Service) ApproveReappearance(ctx context.Context, candidateID, adminID int64) error {
	cand, err := s.candidates.GetCandidateByID(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("load attempt %d: %w", candidateID, err)
	}
	if cand == nil {
		return ErrNotFound
	}
	switch cand.Status {
	case models.StatusLockedOut, models.StatusReappearanceRequested, models.StatusCompleted:
	default:
		return ErrInvalidState
	}

	if err := s.candidates.ApproveReappearance(ctx, candidateID, adminID, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("approve reappearance %d: %w", candidateID, err)
	}

	s.logger.Info("reappearance approved", slog.Int64("candidate_id", candidateID), slog.Int64("admin_id", adminID))
	return nil
}

// ExpireOverdue locks an attempt that is still in progress past its deadline.
// Invoked from the background expiry task; a no-op for finished attempts.
func (s *Service) ExpireOverdue(ctx context.Context, candidateID int64) error {
	cand, err := s.candidates.GetCandidateByID(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("load attempt %d: %w", candidateID, err)
	}
	if cand == nil || cand.Status != models.StatusInProgress {
		return nil
	}
	if time.Now().Before(s.deadline(cand).Add(s.cfg.Grace)) {
		return nil
	}

	if err := s.candidates.SetLockout(ctx, candidateID, lockoutTimeExpired, nil); err != nil {
		return fmt.Errorf("lock expired attempt %d: %w", candidateID, err)
	}
	s.logger.Info("attempt expired", slog.Int64("candidate_id", candidateID))
	return nil
}

func (s *Service) deadline(c *models.Candidate) time.Time {
	return time.UnixMilli(c.StartedAt).Add(s.cfg.Duration)
}

func (s *Service) scheduleExpiry(ctx context.Context, candidateID int64, startedAt time.Time) {
	if s.scheduler == nil {
		return
	}
	runAt := startedAt.Add(s.cfg.Duration + s.cfg.Grace)
	payload := map[string]any{"candidate_id": candidateID}
	if _, err := s.scheduler.Schedule(ctx, "candidate.expire", payload, runAt); err != nil {
		// The submit-time deadline check still enforces the limit.
		s.logger.Warn("failed to schedule expiry task", slog.Int64("candidate_id", candidateID), slog.Any("err", err))
	}
}
