package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hirevet/hirevet/internal/session"
	"github.com/hirevet/hirevet/pkg/models"
	"github.com/hirevet/hirevet/pkg/repository"
)

type CandidatesHandler struct {
	sessions      *session.Service
	candidateRepo repository.CandidateRepo
}

func NewCandidatesHandler(s *session.Service, cr repository.CandidateRepo) *CandidatesHandler {
	return &CandidatesHandler{sessions: s, candidateRepo: cr}
}

// candidateQuestion is a question as shown to a candidate: no correct index,
// no explanation.
type candidateQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func sanitizeQuestions(qs []models.Question) []candidateQuestion {
	out := make([]candidateQuestion, len(qs))
	for i, q := range qs {
		out[i] = candidateQuestion{Question: q.Text, Options: q.Options}
	}
	return out
}

type startRequest struct {
	TestID int64  `json:"test_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func (h *CandidatesHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.TestID <= 0 || req.Name == "" || req.Email == "" {
		http.Error(w, "test_id, name and email are required", http.StatusBadRequest)
		return
	}

	res, err := h.sessions.Start(r.Context(), req.TestID, req.Name, req.Email)
	if err != nil {
		sessionError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, map[string]any{
		"candidate_id": res.CandidateID,
		"questions":    sanitizeQuestions(res.Questions),
		"resumed":      res.Resumed,
		"deadline":     res.Deadline.UTC().Format(time.RFC3339),
	}, status)
}

type submitRequest struct {
	CandidateID int64 `json:"candidate_id"`
	Answers     []int `json:"answers"`
}

func (h *CandidatesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.CandidateID <= 0 {
		http.Error(w, "candidate_id is required", http.StatusBadRequest)
		return
	}

	res, err := h.sessions.Submit(r.Context(), req.CandidateID, req.Answers)
	if err != nil {
		sessionError(w, err)
		return
	}

	writeJSON(w, map[string]any{
		"score":      res.Score,
		"total":      res.Total,
		"percentage": res.Percentage,
		"passed":     res.Passed,
	}, http.StatusOK)
}

type lockoutRequest struct {
	CandidateID int64  `json:"candidate_id"`
	Reason      string `json:"reason"`
	Answers     []int  `json:"answers,omitempty"`
}

func (h *CandidatesHandler) Lockout(w http.ResponseWriter, r *http.Request) {
	var req lockoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.CandidateID <= 0 {
		http.Error(w, "candidate_id is required", http.StatusBadRequest)
		return
	}

	if err := h.sessions.Lockout(r.Context(), req.CandidateID, req.Reason, req.Answers); err != nil {
		sessionError(w, err)
		return
	}

	writeJSON(w, map[string]any{"success": true}, http.StatusOK)
}

type reappearanceRequest struct {
	CandidateID int64 `json:"candidate_id"`
}

func (h *CandidatesHandler) RequestReappearance(w http.ResponseWriter, r *http.Request) {
	var req reappearanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.CandidateID <= 0 {
		http.Error(w, "candidate_id is required", http.StatusBadRequest)
		return
	}

	if err := h.sessions.RequestReappearance(r.Context(), req.CandidateID); err != nil {
		sessionError(w, err)
		return
	}

	writeJSON(w, map[string]any{"success": true}, http.StatusOK)
}

// ApproveReappearance is admin-only; the approving admin's id is recorded on
// the attempt.
func (h *CandidatesHandler) ApproveReappearance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid candidate id", http.StatusBadRequest)
		return
	}

	adminID := adminFromContext(r.Context())
	if adminID <= 0 {
		http.Error(w, "admin required", http.StatusForbidden)
		return
	}

	if err := h.sessions.ApproveReappearance(r.Context(), id, adminID); err != nil {
		sessionError(w, err)
		return
	}

	writeJSON(w, map[string]any{"success": true}, http.StatusOK)
}

func (h *CandidatesHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	var testID int64
	if raw := r.URL.Query().Get("test_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			http.Error(w, "invalid test_id", http.StatusBadRequest)
			return
		}
		testID = v
	}

	candidates, err := h.candidateRepo.ListCandidates(r.Context(), testID)
	if err != nil {
		http.Error(w, "failed to list candidates", http.StatusInternalServerError)
		return
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}

	writeJSON(w, map[string]any{"items": candidates}, http.StatusOK)
}

func (h *CandidatesHandler) GetCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid candidate id", http.StatusBadRequest)
		return
	}

	c, err := h.candidateRepo.GetCandidateByID(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load candidate", http.StatusInternalServerError)
		return
	}
	if c == nil {
		http.Error(w, "candidate not found", http.StatusNotFound)
		return
	}

	writeJSON(w, c, http.StatusOK)
}

func (h *CandidatesHandler) DeleteCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid candidate id", http.StatusBadRequest)
		return
	}

	if err := h.candidateRepo.DeleteCandidate(r.Context(), id); err != nil {
		http.Error(w, "failed to delete candidate", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"success": true}, http.StatusOK)
}
