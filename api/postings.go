package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/hirevet/hirevet/pkg/models"
	"github.com/hirevet/hirevet/pkg/repository"
)

type PostingsHandler struct {
	postingRepo repository.PostingRepo
}

func NewPostingsHandler(pr repository.PostingRepo) *PostingsHandler {
	return &PostingsHandler{postingRepo: pr}
}

type postingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Experience  string   `json:"experience"`
	Skills      []string `json:"skills"`
}

func (pr *postingRequest) validate() string {
	pr.Title = strings.TrimSpace(pr.Title)
	pr.Description = strings.TrimSpace(pr.Description)
	if pr.Title == "" || pr.Description == "" {
		return "title and description are required"
	}
	return ""
}

func (h *PostingsHandler) CreatePosting(w http.ResponseWriter, r *http.Request) {
	var req postingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	p := &models.Posting{Title: req.Title, Description: req.Description, Experience: req.Experience, Skills: req.Skills}
	id, err := h.postingRepo.CreatePosting(r.Context(), p)
	if err != nil {
		http.Error(w, "failed to store posting", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"id": id}, http.StatusCreated)
}

func (h *PostingsHandler) GetPosting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid posting id", http.StatusBadRequest)
		return
	}

	p, err := h.postingRepo.GetPostingByID(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load posting", http.StatusInternalServerError)
		return
	}
	if p == nil {
		http.Error(w, "posting not found", http.StatusNotFound)
		return
	}

	writeJSON(w, p, http.StatusOK)
}

func (h *PostingsHandler) ListPostings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	offset := 0
	if o := q.Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	postings, err := h.postingRepo.ListPostings(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, "failed to list postings", http.StatusInternalServerError)
		return
	}
	if postings == nil {
		postings = []models.Posting{}
	}

	writeJSON(w, map[string]any{"items": postings, "limit": limit, "offset": offset}, http.StatusOK)
}

func (h *PostingsHandler) UpdatePosting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid posting id", http.StatusBadRequest)
		return
	}

	var req postingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	existing, err := h.postingRepo.GetPostingByID(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load posting", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		http.Error(w, "posting not found", http.StatusNotFound)
		return
	}

	existing.Title = req.Title
	existing.Description = req.Description
	existing.Experience = req.Experience
	existing.Skills = req.Skills
	if err := h.postingRepo.UpdatePosting(r.Context(), existing); err != nil {
		http.Error(w, "failed to update posting", http.StatusInternalServerError)
		return
	}

	writeJSON(w, existing, http.StatusOK)
}

func (h *PostingsHandler) DeletePosting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid posting id", http.StatusBadRequest)
		return
	}

	// cascades to the posting's tests and their candidates
	if err := h.postingRepo.DeletePosting(r.Context(), id); err != nil {
		http.Error(w, "failed to delete posting", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"success": true}, http.StatusOK)
}
