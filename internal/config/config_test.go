package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hirevet/hirevet/internal/config"
)

func TestValidate_InsecureJWT_FailsWhenNotDevelopment(t *testing.T) {
	os.Setenv("VET_ENV", "production")
	defer os.Unsetenv("VET_ENV")

	cfg := &config.Config{
		Addr:          ":8080",
		JWTSecret:     "supersecretkey",
		APITimeout:    5 * time.Second,
		DatabasePath:  "hirevet.db",
		TokenDuration: 1 * time.Hour,
		Engine:        config.EngineConfig{Model: "m"},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail for insecure JWT in non-development env")
	}
}

func TestValidate_InsecureJWT_AllowsDevelopment(t *testing.T) {
	os.Setenv("VET_ENV", "development")
	defer os.Unsetenv("VET_ENV")

	cfg := &config.Config{
		Addr:          ":8080",
		JWTSecret:     "supersecretkey",
		APITimeout:    5 * time.Second,
		DatabasePath:  "hirevet.db",
		TokenDuration: 1 * time.Hour,
		Engine:        config.EngineConfig{Model: "m"},
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected Validate to succeed in development env, got: %v", err)
	}
}

func TestValidate_MissingEngineModel(t *testing.T) {
	os.Setenv("VET_ENV", "development")
	defer os.Unsetenv("VET_ENV")

	cfg := &config.Config{
		Addr:          ":8080",
		JWTSecret:     "strongsecret",
		APITimeout:    5 * time.Second,
		DatabasePath:  "hirevet.db",
		TokenDuration: 1 * time.Hour,
		Engine:        config.EngineConfig{Model: ""},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail when engine.model is empty")
	}
}

func TestValidate_DefaultsPopulated(t *testing.T) {
	os.Setenv("VET_ENV", "development")
	defer os.Unsetenv("VET_ENV")

	cfg := &config.Config{
		Addr:          ":8080",
		JWTSecret:     "strongsecret",
		APITimeout:    5 * time.Second,
		DatabasePath:  "hirevet.db",
		TokenDuration: 1 * time.Hour,
		Engine:        config.EngineConfig{Model: "m"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed unexpectedly: %v", err)
	}

	if cfg.Ollama.BaseURL == "" {
		t.Fatalf("expected ollama defaults to be populated")
	}
	if cfg.Engine.PoolSize <= 0 {
		t.Fatalf("expected pool size default, got %d", cfg.Engine.PoolSize)
	}
	if cfg.Engine.Template.Name != "questions" || cfg.Engine.Template.Version != "v1" {
		t.Fatalf("expected template defaults, got %+v", cfg.Engine.Template)
	}
	if cfg.Session.SampleSize != 21 {
		t.Fatalf("expected session sample size default 21, got %d", cfg.Session.SampleSize)
	}
	if cfg.Session.Duration != 45*time.Minute {
		t.Fatalf("expected session duration default 45m, got %v", cfg.Session.Duration)
	}
}

func TestLoadConfig_NoPathUsesEnvDefaults(t *testing.T) {
	os.Setenv("VET_ENV", "development")
	os.Setenv("VET_ADDR", ":9999")
	defer os.Unsetenv("VET_ENV")
	defer os.Unsetenv("VET_ADDR")

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("expected addr from env, got %q", cfg.Addr)
	}
	if cfg.DatabasePath == "" {
		t.Fatalf("expected database path default")
	}
}

func TestLoadConfig_YAMLOverrides(t *testing.T) {
	os.Setenv("VET_ENV", "development")
	defer os.Unsetenv("VET_ENV")

	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := []byte(`addr: ":7070"
jwt_secret: strongsecret
engine:
  model: llama3
  pool_size: 30
session:
  sample_size: 10
  pass_percent: 70
`)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("expected addr from yaml, got %q", cfg.Addr)
	}
	if cfg.Engine.PoolSize != 30 {
		t.Fatalf("expected pool size 30, got %d", cfg.Engine.PoolSize)
	}
	if cfg.Session.SampleSize != 10 || cfg.Session.PassPercent != 70 {
		t.Fatalf("expected session overrides, got %+v", cfg.Session)
	}
	if cfg.Session.Duration != 45*time.Minute {
		t.Fatalf("expected duration to keep its default, got %v", cfg.Session.Duration)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := config.LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
