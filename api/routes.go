package api

import (
	"github.com/gorilla/mux"

	"github.com/hirevet/hirevet/internal/ai"
	"github.com/hirevet/hirevet/internal/config"
	"github.com/hirevet/hirevet/internal/repository/sqlite"
	"github.com/hirevet/hirevet/internal/session"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, repo *sqlite.SQLiteRepo, engine *ai.Engine, sessions *session.Service) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(repo, cfg.JWTSecret, cfg.TokenDuration)
	postingsHandler := NewPostingsHandler(repo)
	testsHandler := NewTestsHandler(repo, repo, engine, cfg.Engine.PoolSize, cfg.BaseURL)
	candidatesHandler := NewCandidatesHandler(sessions, repo)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")

	// Candidate-facing endpoints carry no auth. Candidates are identified by
	// the test link plus email, not by an account.
	r.HandleFunc("/v1/postings/{id:[0-9]+}", postingsHandler.GetPosting).Methods("GET")
	r.HandleFunc("/v1/tests/{id}", testsHandler.GetTest).Methods("GET")
	r.HandleFunc("/v1/candidates/start", candidatesHandler.Start).Methods("POST")
	r.HandleFunc("/v1/candidates/submit", candidatesHandler.Submit).Methods("POST")
	r.HandleFunc("/v1/candidates/lockout", candidatesHandler.Lockout).Methods("POST")
	r.HandleFunc("/v1/candidates/request-reappearance", candidatesHandler.RequestReappearance).Methods("POST")

	// API v1 admin routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(AdminAuthMiddleware(cfg.JWTSecret))

	// Auth endpoints
	apiV1.HandleFunc("/auth/signout", authHandler.Signout).Methods("POST")

	// Posting endpoints
	apiV1.HandleFunc("/postings", postingsHandler.CreatePosting).Methods("POST")
	apiV1.HandleFunc("/postings", postingsHandler.ListPostings).Methods("GET")
	apiV1.HandleFunc("/postings/{id:[0-9]+}", postingsHandler.UpdatePosting).Methods("PUT")
	apiV1.HandleFunc("/postings/{id:[0-9]+}", postingsHandler.DeletePosting).Methods("DELETE")

	// Test endpoints
	apiV1.HandleFunc("/tests", testsHandler.CreateTest).Methods("POST")
	apiV1.HandleFunc("/tests", testsHandler.ListTests).Methods("GET")
	apiV1.HandleFunc("/tests/{id:[0-9]+}/link", testsHandler.CreateLink).Methods("POST")
	apiV1.HandleFunc("/tests/{id:[0-9]+}", testsHandler.DeleteTest).Methods("DELETE")

	// Candidate administration
	apiV1.HandleFunc("/candidates", candidatesHandler.ListCandidates).Methods("GET")
	apiV1.HandleFunc("/candidates/{id:[0-9]+}", candidatesHandler.GetCandidate).Methods("GET")
	apiV1.HandleFunc("/candidates/{id:[0-9]+}/approve-reappearance", candidatesHandler.ApproveReappearance).Methods("POST")
	apiV1.HandleFunc("/candidates/{id:[0-9]+}", candidatesHandler.DeleteCandidate).Methods("DELETE")

	return r
}
