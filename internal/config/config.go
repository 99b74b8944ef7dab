package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hirevet/hirevet/internal/session"
	"github.com/hirevet/hirevet/pkg/ollama"
)

type Config struct {
	Addr          string         `yaml:"addr"`
	BaseURL       string         `yaml:"base_url"`
	JWTSecret     string         `yaml:"jwt_secret"`
	APITimeout    time.Duration  `yaml:"timeout"`
	DatabasePath  string         `yaml:"database_path"`
	TokenDuration time.Duration  `yaml:"token_duration"`
	Workers       int            `yaml:"workers"`
	Session       session.Config `yaml:"session"`
	Engine        EngineConfig   `yaml:"engine"`
	Ollama        ollama.Config  `yaml:"ollama"`
}

type EngineConfig struct {
	Model    string         `yaml:"model"`
	Template PromptTemplate `yaml:"template"`
	Timeout  time.Duration  `yaml:"timeout"`
	// PoolSize is the number of questions generated per test.
	PoolSize int `yaml:"pool_size"`
}

type PromptTemplate struct {
	Name          string  `yaml:"name"`
	Version       string  `yaml:"version"`
	SchemaVersion *string `yaml:"schema_version,omitempty"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:          getEnv("VET_ADDR", ":8080"),
		BaseURL:       getEnv("VET_BASE_URL", "http://localhost:8080"),
		JWTSecret:     getEnv("VET_JWT_SECRET", "supersecretkey"),
		APITimeout:    15 * time.Second,
		DatabasePath:  getEnv("VET_DATABASE_PATH", "hirevet.db"),
		TokenDuration: 1 * time.Hour,
		Workers:       2,
		Session:       session.DefaultConfig(),
		Engine: EngineConfig{
			Model:    getEnv("VET_ENGINE_MODEL", "llama3"),
			Template: PromptTemplate{Name: "questions", Version: "v1"},
			Timeout:  2 * time.Minute,
			PoolSize: 50,
		},
		Ollama: ollama.DefaultConfig(),
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values that are unsafe or unusable
// outside development.
func (c *Config) Validate() error {
	env := os.Getenv("VET_ENV")
	if env == "" {
		env = "development"
	}
	if env != "development" && (c.JWTSecret == "" || c.JWTSecret == "supersecretkey") {
		return fmt.Errorf("jwt_secret must be set to a strong value outside development")
	}
	if c.Engine.Model == "" {
		return fmt.Errorf("engine.model is required")
	}
	if c.Engine.PoolSize <= 0 {
		c.Engine.PoolSize = 50
	}
	if c.Engine.Template.Name == "" {
		c.Engine.Template.Name = "questions"
	}
	if c.Engine.Template.Version == "" {
		c.Engine.Template.Version = "v1"
	}
	if c.Ollama.BaseURL == "" {
		c.Ollama = ollama.DefaultConfig()
	}
	if c.Session.SampleSize <= 0 || c.Session.Duration <= 0 {
		defaults := session.DefaultConfig()
		if c.Session.SampleSize <= 0 {
			c.Session.SampleSize = defaults.SampleSize
		}
		if c.Session.PassPercent <= 0 {
			c.Session.PassPercent = defaults.PassPercent
		}
		if c.Session.Duration <= 0 {
			c.Session.Duration = defaults.Duration
		}
		if c.Session.Grace <= 0 {
			c.Session.Grace = defaults.Grace
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
