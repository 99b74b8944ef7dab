package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hirevet/hirevet/api"
	appdb "github.com/hirevet/hirevet/db"
	"github.com/hirevet/hirevet/internal/ai"
	"github.com/hirevet/hirevet/internal/config"
	"github.com/hirevet/hirevet/internal/db"
	"github.com/hirevet/hirevet/internal/repository/sqlite"
	"github.com/hirevet/hirevet/internal/session"
	"github.com/hirevet/hirevet/internal/tasks"
	"github.com/hirevet/hirevet/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	ollama.SetLogger(logger)

	logger.Info("starting hirevet server", "version", version, "built", buildTime)

	ctx := context.Background()

	// Open database connection and apply migrations plus seed data
	database, err := db.New(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := db.Migrate(ctx, database, appdb.Migrations, appdb.SeedFiles); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	repo := sqlite.New(database, logger)

	// LLM client and question engine
	llm, err := ollama.NewDefaultClient(cfg.Ollama)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	engine, err := ai.NewEngine(ctx, llm, cfg.Engine, repo, repo, logger)
	if err != nil {
		log.Fatalf("Failed to create question engine: %v", err)
	}

	// Background task queue. The expiry handler needs the session service
	// and the service needs the pool as its scheduler, so the handler map
	// is filled in after both exist, before Start.
	handlers := map[string]tasks.Handler{}
	queue := tasks.NewRepository(database)
	pool := tasks.NewWorkerPool(queue, handlers, logger, cfg.Workers)

	sessions := session.NewService(repo, repo, pool, cfg.Session, logger)
	handlers[tasks.TypeCandidateExpire] = tasks.ExpireHandler(sessions)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	pool.Start(workerCtx)

	handler := api.SetupRoutes(cfg, version, buildTime, repo, engine, sessions)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	stopWorkers()
	pool.Stop()

	if err := llm.Close(); err != nil {
		logger.Error("close LLM client", "err", err)
	}
	if err := database.Close(); err != nil {
		logger.Error("close DB", "err", err)
	}

	logger.Info("server exited")
}
