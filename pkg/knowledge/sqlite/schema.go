package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Timestamps are stored as Unix microseconds (UTC) so ordering never depends
// on text formatting.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at     INTEGER NOT NULL,
    original_text  TEXT    NOT NULL,
    processed_text TEXT    NOT NULL,
    edited_text    TEXT,
    format_type    TEXT    NOT NULL DEFAULT '',
    metadata       TEXT    NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_entries_created
    ON entries (created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS corrections (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    original_word   TEXT    NOT NULL,
    corrected_word  TEXT    NOT NULL,
    context_before  TEXT    NOT NULL DEFAULT '',
    context_after   TEXT    NOT NULL DEFAULT '',
    correction_type TEXT    NOT NULL,
    usage_count     INTEGER NOT NULL DEFAULT 1,
    last_used       INTEGER NOT NULL,
    UNIQUE (original_word, corrected_word)
);

CREATE INDEX IF NOT EXISTS idx_corrections_lookup
    ON corrections (original_word, usage_count DESC, last_used DESC);

CREATE TABLE IF NOT EXISTS terminology (
    term      TEXT    PRIMARY KEY,
    category  TEXT    NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 1,
    last_used INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entry_vectors (
    entry_id   INTEGER PRIMARY KEY,
    content    TEXT    NOT NULL,
    embedding  TEXT    NOT NULL,
    metadata   TEXT    NOT NULL DEFAULT '{}',
    updated_at INTEGER NOT NULL
);
`

// Migrate creates all tables and indexes if they do not already exist.
// It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}
