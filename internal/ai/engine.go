// Package ai turns a job posting into a multiple-choice question pool via a
// local LLM, validating the model's output against a DB-seeded JSON schema.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hirevet/hirevet/internal/config"
	"github.com/hirevet/hirevet/internal/session"
	"github.com/hirevet/hirevet/pkg/models"
	"github.com/hirevet/hirevet/pkg/ollama"
	"github.com/hirevet/hirevet/pkg/repository"
)

// Generator abstracts the LLM client so tests can stub it.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Engine renders the question prompt, calls the model and parses the result.
type Engine struct {
	client Generator
	cfg    config.EngineConfig
	loader *Loader
	tmpl   string
	logger *slog.Logger
}

// NewEngine creates a new engine. The prompt template and its schema are
// loaded from the repository; both must be seeded before the server starts.
func NewEngine(ctx context.Context, client Generator, cfg config.EngineConfig, sr repository.SchemaRepo, tr repository.TemplateRepo, logger *slog.Logger) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if sr == nil {
		return nil, fmt.Errorf("schema repo is required")
	}
	if tr == nil {
		return nil, fmt.Errorf("template repo is required")
	}
	if cfg.Template.Name == "" {
		cfg.Template.Name = "questions"
	}
	if cfg.Template.Version == "" {
		cfg.Template.Version = "v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	loader, err := NewLoader(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("create loader: %w", err)
	}

	tpl, err := tr.GetTemplate(ctx, cfg.Template.Name, cfg.Template.Version)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if tpl == nil || tpl.TemplateTxt == "" {
		return nil, fmt.Errorf("template %s:%s not found", cfg.Template.Name, cfg.Template.Version)
	}
	if cfg.Template.SchemaVersion == nil {
		cfg.Template.SchemaVersion = tpl.SchemaVer
	}

	return &Engine{client: client, cfg: cfg, loader: loader, tmpl: tpl.TemplateTxt, logger: logger}, nil
}

// generatedQuestion is the wire shape the model is instructed to emit; the
// correct answer arrives as a letter and is normalized to an index here.
type generatedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

type generatedPayload struct {
	Questions []generatedQuestion `json:"questions"`
}

// GenerateQuestions produces count questions for the posting at the given
// complexity. The raw model output is schema-validated before conversion, so
// a malformed response never reaches the datastore.
func (e *Engine) GenerateQuestions(ctx context.Context, posting *models.Posting, complexity string, count int) ([]models.Question, error) {
	if posting == nil {
		return nil, fmt.Errorf("posting is nil")
	}
	if count <= 0 {
		return nil, fmt.Errorf("question count must be positive")
	}

	data := map[string]any{
		"Title":       posting.Title,
		"Description": posting.Description,
		"Experience":  posting.Experience,
		"Skills":      posting.Skills,
		"Complexity":  complexity,
		"Count":       count,
	}
	prompt, err := ollama.RenderTemplate(e.tmpl, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	ctxReq, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.client.Generate(ctxReq, e.cfg.Model, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	questions, err := e.parseQuestions(ctxReq, out)
	if err != nil {
		e.logger.Error("question parse failed", slog.Any("err", err), slog.Int("raw_len", len(out)))
		return nil, err
	}

	e.logger.Info("questions generated",
		slog.Int64("posting_id", posting.ID),
		slog.String("complexity", complexity),
		slog.Int("count", len(questions)),
	)
	return questions, nil
}

func (e *Engine) parseQuestions(ctx context.Context, raw string) ([]models.Question, error) {
	j := extractJSON(raw)
	if j == "" {
		return nil, errors.New("no JSON object found in response")
	}

	schemaVer := "v1"
	if e.cfg.Template.SchemaVersion != nil && *e.cfg.Template.SchemaVersion != "" {
		schemaVer = *e.cfg.Template.SchemaVersion
	}
	schema, ok := e.loader.GetSchema(schemaVer)
	if !ok || schema == nil {
		return nil, fmt.Errorf("no schema found for version %s", schemaVer)
	}

	verrs, err := schema.ValidateBytes(ctx, []byte(j))
	if err != nil {
		return nil, fmt.Errorf("schema validate error: %w", err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		return nil, fmt.Errorf("response does not match schema: %s", sb.String())
	}

	var payload generatedPayload
	if err := json.Unmarshal([]byte(j), &payload); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if len(payload.Questions) == 0 {
		return nil, errors.New("model returned no questions")
	}

	out := make([]models.Question, 0, len(payload.Questions))
	for i, gq := range payload.Questions {
		if len(gq.Options) != 4 {
			return nil, fmt.Errorf("question %d has %d options, want 4", i, len(gq.Options))
		}
		correct, err := session.LetterToIndex(strings.TrimSpace(gq.CorrectAnswer))
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		out = append(out, models.Question{
			Text:        strings.TrimSpace(gq.Question),
			Options:     gq.Options,
			Correct:     correct,
			Explanation: strings.TrimSpace(gq.Explanation),
		})
	}

	return out, nil
}

// ReloadSchemas refreshes the cached schema versions from the DB.
func (e *Engine) ReloadSchemas(ctx context.Context) error {
	return e.loader.Reload(ctx)
}

// extractJSON returns the substring from the first '{' to the last '}' in the
// input. This is a pragmatic approach for model outputs that wrap JSON in
// prose or markdown fences.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}
