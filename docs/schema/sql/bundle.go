// Package sqldocs embeds the snapshot table DDL used by the SQL persistence
// drivers, so the documented schema and the executed schema are the same file.
package sqldocs

import _ "embed"

// SQLite is the decks table DDL for the sqlite driver.
//
//go:embed sqlite.sql
var SQLite string

// Postgres is the decks table DDL for the postgres driver.
//
//go:embed postgres.sql
var Postgres string
