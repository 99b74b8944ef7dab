package db

import "embed"

// Migrations holds the SQL migration files applied at server start.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// SeedFiles holds the default prompt template and question schema.
//
//go:embed seed/*.*
var SeedFiles embed.FS
