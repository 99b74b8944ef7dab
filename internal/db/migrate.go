package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Migrate applies migrations and optional seed files found in the repository.
// It creates a `schema_migrations` table to track applied migrations and applies
// any SQL files in `db/migrations/` that have not yet been recorded. Seed files
// (the default question prompt template and its JSON schema) are applied with
// upserts so repeated startups are safe.
func Migrate(ctx context.Context, d *DB, migrationFS embed.FS, seedFS embed.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	migDir := "migrations"

	entries, err := fs.ReadDir(migrationFS, migDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	for _, fname := range files {
		// filename without extension is the migration version key
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		row := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		p := path.Join(migDir, fname)
		b, err := fs.ReadFile(migrationFS, p)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}

		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, ?)`, version, time.Now().Unix()); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
	}

	now := time.Now().UTC().UnixMilli()

	schemaPath := path.Join("seed", "schema_questions_v1.json")
	if b, err := fs.ReadFile(seedFS, schemaPath); err == nil {
		if _, err := d.Exec(ctx, `INSERT INTO ai_schemas (version, description, schema_json, created, updated) VALUES ('v1', 'default question payload schema', ?, ?, ?) ON CONFLICT(version) DO UPDATE SET schema_json=excluded.schema_json, updated=excluded.updated`, string(b), now, now); err != nil {
			return fmt.Errorf("seed schema exec: %w", err)
		}
	}

	templatePath := path.Join("seed", "template_questions_v1.txt")
	if b, err := fs.ReadFile(seedFS, templatePath); err == nil {
		if _, err := d.Exec(ctx, `INSERT INTO ai_templates (name, version, template_text, schema_version, metadata, created, updated) VALUES ('questions', 'v1', ?, 'v1', ?, ?, ?) ON CONFLICT(name, version) DO UPDATE SET template_text=excluded.template_text, updated=excluded.updated`, string(b), `{"owner":"system","description":"default question generation template"}`, now, now); err != nil {
			return fmt.Errorf("seed template exec: %w", err)
		}
	}

	return nil
}
