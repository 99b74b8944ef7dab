package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/hirevet/hirevet/api"
	appdb "github.com/hirevet/hirevet/db"
	"github.com/hirevet/hirevet/internal/db"
	"github.com/hirevet/hirevet/internal/repository/sqlite"
	"github.com/hirevet/hirevet/internal/session"
	"github.com/hirevet/hirevet/pkg/models"
)

const testSecret = "integration-secret"

// setupCandidateServer wires the candidate flow against a real sqlite database
// with the embedded migrations applied.
func setupCandidateServer(t *testing.T, cfg session.Config) (*httptest.Server, *sqlite.SQLiteRepo, int64, func()) {
	t.Helper()
	ctx := context.Background()

	// named in-memory DB so this test does not share state with others
	d, err := db.New(ctx, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	if err := db.Migrate(ctx, d, appdb.Migrations, appdb.SeedFiles); err != nil {
		d.Close()
		t.Fatalf("migrate: %v", err)
	}

	repo := sqlite.New(d, nil)

	postingID, err := repo.CreatePosting(ctx, &models.Posting{Title: "Backend Engineer", Description: "Go services", Skills: []string{"go", "sql"}})
	if err != nil {
		t.Fatalf("create posting: %v", err)
	}
	testID, err := repo.CreateTest(ctx, &models.Test{PostingID: postingID, Complexity: models.ComplexityMedium, Questions: questionPool(50), ShortCode: "itest"})
	if err != nil {
		t.Fatalf("create test: %v", err)
	}

	sessions := session.NewService(repo, repo, nil, cfg, nil)
	ch := api.NewCandidatesHandler(sessions, repo)

	r := mux.NewRouter()
	r.HandleFunc("/v1/candidates/start", ch.Start).Methods("POST")
	r.HandleFunc("/v1/candidates/submit", ch.Submit).Methods("POST")
	r.HandleFunc("/v1/candidates/lockout", ch.Lockout).Methods("POST")
	r.HandleFunc("/v1/candidates/request-reappearance", ch.RequestReappearance).Methods("POST")

	admin := r.PathPrefix("/v1").Subrouter()
	admin.Use(api.AdminAuthMiddleware(testSecret))
	admin.HandleFunc("/candidates", ch.ListCandidates).Methods("GET")
	admin.HandleFunc("/candidates/{id:[0-9]+}", ch.GetCandidate).Methods("GET")
	admin.HandleFunc("/candidates/{id:[0-9]+}/approve-reappearance", ch.ApproveReappearance).Methods("POST")

	srv := httptest.NewServer(r)
	return srv, repo, testID, func() { srv.Close(); d.Close() }
}

func adminToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"admin_id": int64(1),
		"email":    "admin@example.com",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	res, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return res
}

type startResponse struct {
	CandidateID int64 `json:"candidate_id"`
	Questions   []struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
	} `json:"questions"`
	Resumed  bool   `json:"resumed"`
	Deadline string `json:"deadline"`
}

func TestCandidateFlow(t *testing.T) {
	srv, _, testID, cleanup := setupCandidateServer(t, session.DefaultConfig())
	defer cleanup()

	// start
	res := postJSON(t, srv.URL+"/v1/candidates/start", map[string]any{"test_id": testID, "name": "Alice", "email": "alice@example.com"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start: expected 201 got %d", res.StatusCode)
	}
	var sr startResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if len(sr.Questions) != 21 {
		t.Fatalf("expected 21 questions, got %d", len(sr.Questions))
	}
	for _, q := range sr.Questions {
		if len(q.Options) != 4 {
			t.Fatalf("question %q has %d options", q.Question, len(q.Options))
		}
	}

	// restart resumes the same attempt with the same questions
	res2 := postJSON(t, srv.URL+"/v1/candidates/start", map[string]any{"test_id": testID, "name": "Alice", "email": "alice@example.com"})
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("resume: expected 200 got %d", res2.StatusCode)
	}
	var sr2 startResponse
	if err := json.NewDecoder(res2.Body).Decode(&sr2); err != nil {
		t.Fatalf("decode resume: %v", err)
	}
	if !sr2.Resumed || sr2.CandidateID != sr.CandidateID {
		t.Fatalf("resume mismatch: %+v vs %+v", sr2, sr)
	}
	for i := range sr.Questions {
		if sr2.Questions[i].Question != sr.Questions[i].Question {
			t.Fatalf("question subset changed on resume")
		}
	}

	// submit
	answers := make([]int, len(sr.Questions))
	res3 := postJSON(t, srv.URL+"/v1/candidates/submit", map[string]any{"candidate_id": sr.CandidateID, "answers": answers})
	defer res3.Body.Close()
	if res3.StatusCode != http.StatusOK {
		t.Fatalf("submit: expected 200 got %d", res3.StatusCode)
	}
	var sub struct {
		Score      int  `json:"score"`
		Total      int  `json:"total"`
		Percentage int  `json:"percentage"`
		Passed     bool `json:"passed"`
	}
	if err := json.NewDecoder(res3.Body).Decode(&sub); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if sub.Total != 21 {
		t.Fatalf("expected total 21, got %d", sub.Total)
	}

	// double submit is a conflict
	res4 := postJSON(t, srv.URL+"/v1/candidates/submit", map[string]any{"candidate_id": sr.CandidateID, "answers": answers})
	defer res4.Body.Close()
	if res4.StatusCode != http.StatusConflict {
		t.Fatalf("double submit: expected 409 got %d", res4.StatusCode)
	}

	// starting again after completion is forbidden
	res5 := postJSON(t, srv.URL+"/v1/candidates/start", map[string]any{"test_id": testID, "name": "Alice", "email": "alice@example.com"})
	defer res5.Body.Close()
	if res5.StatusCode != http.StatusForbidden {
		t.Fatalf("restart after submit: expected 403 got %d", res5.StatusCode)
	}
}

func TestCandidateConcurrentStart(t *testing.T) {
	srv, repo, testID, cleanup := setupCandidateServer(t, session.DefaultConfig())
	defer cleanup()

	const n = 8
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := postJSON(t, srv.URL+"/v1/candidates/start", map[string]any{"test_id": testID, "name": "Bob", "email": "bob@example.com"})
			defer res.Body.Close()
			if res.StatusCode != http.StatusCreated && res.StatusCode != http.StatusOK {
				t.Errorf("concurrent start: unexpected status %d", res.StatusCode)
				return
			}
			var sr startResponse
			if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
				t.Errorf("decode: %v", err)
				return
			}
			ids[i] = sr.CandidateID
		}()
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent starts produced distinct attempts: %v", ids)
		}
	}

	rows, err := repo.ListCandidates(context.Background(), testID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 attempt row, got %d", len(rows))
	}
}

func TestCandidateLockoutReappearance(t *testing.T) {
	srv, repo, testID, cleanup := setupCandidateServer(t, session.DefaultConfig())
	defer cleanup()
	token := adminToken(t)

	res := postJSON(t, srv.URL+"/v1/candidates/start", map[string]any{"test_id": testID, "name": "Carol", "email": "carol@example.com"})
	defer res.Body.Close()
	var sr startResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		t.Fatalf("decode start: %v", err)
	}

	// client reports a proctoring violation
	res2 := postJSON(t, srv.URL+"/v1/candidates/lockout", map[string]any{"candidate_id": sr.CandidateID, "reason": "window lost focus", "answers": []int{0, 1, 2}})
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("lockout: expected 200 got %d", res2.StatusCode)
	}

	cand, err := repo.GetCandidateByID(context.Background(), sr.CandidateID)
	if err != nil {
		t.Fatalf("get candidate: %v", err)
	}
	if cand.Status != models.StatusLockedOut || cand.LockoutReason != "window lost focus" {
		t.Fatalf("lockout not recorded: %+v", cand)
	}
	if len(cand.Answers) != 3 {
		t.Fatalf("partial answers not snapshotted: %v", cand.Answers)
	}

	// candidate asks for another chance
	res3 := postJSON(t, srv.URL+"/v1/candidates/request-reappearance", map[string]any{"candidate_id": sr.CandidateID})
	defer res3.Body.Close()
	if res3.StatusCode != http.StatusOK {
		t.Fatalf("request reappearance: expected 200 got %d", res3.StatusCode)
	}

	// approval requires an admin token
	approveURL := fmt.Sprintf("%s/v1/candidates/%d/approve-reappearance", srv.URL, sr.CandidateID)
	reqNoAuth, _ := http.NewRequest(http.MethodPost, approveURL, nil)
	resNoAuth, err := http.DefaultClient.Do(reqNoAuth)
	if err != nil {
		t.Fatalf("approve without auth: %v", err)
	}
	defer resNoAuth.Body.Close()
	if resNoAuth.StatusCode != http.StatusUnauthorized {
		t.Fatalf("approve without auth: expected 401 got %d", resNoAuth.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, approveURL, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res4, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	defer res4.Body.Close()
	if res4.StatusCode != http.StatusOK {
		t.Fatalf("approve: expected 200 got %d", res4.StatusCode)
	}

	cand, _ = repo.GetCandidateByID(context.Background(), sr.CandidateID)
	if cand.ReappearanceApprovedBy == nil || *cand.ReappearanceApprovedBy != 1 {
		t.Fatalf("approving admin not recorded: %+v", cand)
	}

	// the next start re-arms the attempt with a fresh subset
	res5 := postJSON(t, srv.URL+"/v1/candidates/start", map[string]any{"test_id": testID, "name": "Carol", "email": "carol@example.com"})
	defer res5.Body.Close()
	if res5.StatusCode != http.StatusCreated {
		t.Fatalf("restart after approval: expected 201 got %d", res5.StatusCode)
	}
	var sr5 startResponse
	if err := json.NewDecoder(res5.Body).Decode(&sr5); err != nil {
		t.Fatalf("decode restart: %v", err)
	}
	if sr5.CandidateID != sr.CandidateID || sr5.Resumed {
		t.Fatalf("restart did not re-arm the same attempt: %+v", sr5)
	}
	if len(sr5.Questions) != 21 {
		t.Fatalf("expected a fresh 21-question subset, got %d", len(sr5.Questions))
	}
}

func TestCandidateDeadline(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.Duration = 20 * time.Millisecond
	cfg.Grace = 0
	srv, repo, testID, cleanup := setupCandidateServer(t, cfg)
	defer cleanup()

	res := postJSON(t, srv.URL+"/v1/candidates/start", map[string]any{"test_id": testID, "name": "Dave", "email": "dave@example.com"})
	defer res.Body.Close()
	var sr startResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		t.Fatalf("decode start: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	res2 := postJSON(t, srv.URL+"/v1/candidates/submit", map[string]any{"candidate_id": sr.CandidateID, "answers": []int{}})
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusForbidden {
		t.Fatalf("late submit: expected 403 got %d", res2.StatusCode)
	}

	cand, err := repo.GetCandidateByID(context.Background(), sr.CandidateID)
	if err != nil {
		t.Fatalf("get candidate: %v", err)
	}
	if cand.Status != models.StatusLockedOut {
		t.Fatalf("late submit did not lock the attempt: %q", cand.Status)
	}
}
