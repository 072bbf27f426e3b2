package migrations

import "embed"

// FS contains embedded SQLite migrations for registration records.
//
//go:embed *.sql
var FS embed.FS
