package api

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/hirevet/hirevet/pkg/models"
	"github.com/hirevet/hirevet/pkg/repository"
)

// QuestionGenerator produces a question pool for a posting.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, posting *models.Posting, complexity string, count int) ([]models.Question, error)
}

type TestsHandler struct {
	testRepo    repository.TestRepo
	postingRepo repository.PostingRepo
	generator   QuestionGenerator
	poolSize    int
	baseURL     string
}

func NewTestsHandler(tr repository.TestRepo, pr repository.PostingRepo, gen QuestionGenerator, poolSize int, baseURL string) *TestsHandler {
	if poolSize <= 0 {
		poolSize = 50
	}
	return &TestsHandler{testRepo: tr, postingRepo: pr, generator: gen, poolSize: poolSize, baseURL: baseURL}
}

type createTestRequest struct {
	PostingID  int64  `json:"posting_id"`
	Complexity string `json:"complexity"`
}

// CreateTest generates a question pool for a posting via the LLM and persists
// the test. Generation failure leaves no partial test row.
func (h *TestsHandler) CreateTest(w http.ResponseWriter, r *http.Request) {
	var req createTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.PostingID <= 0 {
		http.Error(w, "posting_id is required", http.StatusBadRequest)
		return
	}
	switch req.Complexity {
	case models.ComplexityLow, models.ComplexityMedium, models.ComplexityHigh:
	default:
		http.Error(w, "complexity must be low, medium or high", http.StatusBadRequest)
		return
	}

	posting, err := h.postingRepo.GetPostingByID(r.Context(), req.PostingID)
	if err != nil {
		http.Error(w, "failed to load posting", http.StatusInternalServerError)
		return
	}
	if posting == nil {
		http.Error(w, "posting not found", http.StatusNotFound)
		return
	}

	questions, err := h.generator.GenerateQuestions(r.Context(), posting, req.Complexity, h.poolSize)
	if err != nil {
		logger.Error("question generation failed", "posting_id", req.PostingID, "err", err)
		http.Error(w, fmt.Sprintf("question generation failed: %v", err), http.StatusBadGateway)
		return
	}

	created := time.Now().UTC().UnixMilli()
	t := &models.Test{
		PostingID:  req.PostingID,
		Complexity: req.Complexity,
		Questions:  questions,
		ShortCode:  shortCode(req.PostingID, posting.Title, created),
	}
	id, err := h.testRepo.CreateTest(r.Context(), t)
	if err != nil {
		http.Error(w, "failed to store test", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"id": id, "short_code": t.ShortCode, "questions": len(questions)}, http.StatusCreated)
}

// GetTest resolves a test by numeric id, short code or link token and returns
// it with correct answers and explanations stripped, since this endpoint
// backs the candidate-facing flow.
func (h *TestsHandler) GetTest(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["id"]

	var t *models.Test
	var err error
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil && id > 0 {
		t, err = h.testRepo.GetTestByID(r.Context(), id)
	} else {
		t, err = h.testRepo.GetTestByShortCode(r.Context(), ref)
		if err == nil && t == nil {
			t, err = h.testRepo.GetTestByLinkToken(r.Context(), ref)
		}
	}
	if err != nil {
		http.Error(w, "failed to load test", http.StatusInternalServerError)
		return
	}
	if t == nil {
		http.Error(w, "test not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]any{
		"id":         t.ID,
		"posting_id": t.PostingID,
		"complexity": t.Complexity,
		"questions":  len(t.Questions),
		"short_code": t.ShortCode,
	}, http.StatusOK)
}

func (h *TestsHandler) ListTests(w http.ResponseWriter, r *http.Request) {
	var postingID int64
	if raw := r.URL.Query().Get("posting_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			http.Error(w, "invalid posting_id", http.StatusBadRequest)
			return
		}
		postingID = v
	}

	tests, err := h.testRepo.ListTests(r.Context(), postingID)
	if err != nil {
		http.Error(w, "failed to list tests", http.StatusInternalServerError)
		return
	}
	if tests == nil {
		tests = []models.Test{}
	}

	writeJSON(w, map[string]any{"items": tests}, http.StatusOK)
}

func (h *TestsHandler) DeleteTest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid test id", http.StatusBadRequest)
		return
	}

	// cascades to the test's candidates
	if err := h.testRepo.DeleteTest(r.Context(), id); err != nil {
		http.Error(w, "failed to delete test", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"success": true}, http.StatusOK)
}

// CreateLink issues an opaque token the admin can send to a candidate. The
// token resolves through GetTest like a short code.
func (h *TestsHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid test id", http.StatusBadRequest)
		return
	}

	t, err := h.testRepo.GetTestByID(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load test", http.StatusInternalServerError)
		return
	}
	if t == nil {
		http.Error(w, "test not found", http.StatusNotFound)
		return
	}

	token := uuid.New().String()
	if err := h.testRepo.SetLinkToken(r.Context(), id, token); err != nil {
		http.Error(w, "failed to save test link", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"token": token,
		"link":  fmt.Sprintf("%s/v1/tests/%s", h.baseURL, token),
	}, http.StatusCreated)
}

// shortCode derives a compact base36 code for test URLs. It is a convenience
// hash, not collision-resistant.
func shortCode(postingID int64, title string, ts int64) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d:%s:%d", postingID, title, ts)
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}
