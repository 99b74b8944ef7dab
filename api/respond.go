package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/hirevet/hirevet/internal/session"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", "err", err)
	}
}

// pathID extracts a numeric {id} path variable.
func pathID(r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// sessionError maps session state-machine errors onto HTTP statuses.
// Candidates get short generic messages; admin handlers surface error text
// directly.
func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, session.ErrAttempted):
		http.Error(w, "already attempted or pending approval", http.StatusForbidden)
	case errors.Is(err, session.ErrTimeExpired):
		http.Error(w, "time limit exceeded", http.StatusForbidden)
	case errors.Is(err, session.ErrAlreadySubmitted):
		http.Error(w, "already submitted", http.StatusConflict)
	case errors.Is(err, session.ErrNoQuestions):
		http.Error(w, "no assigned questions", http.StatusBadRequest)
	case errors.Is(err, session.ErrInvalidState):
		http.Error(w, "operation not allowed in current state", http.StatusConflict)
	default:
		logger.Error("session operation failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
