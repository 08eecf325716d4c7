package migrations

import "embed"

// FS содержит SQL-миграции Postgres.
//
//go:embed *.sql
var FS embed.FS
