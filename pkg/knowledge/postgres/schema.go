// Package postgres provides a PostgreSQL implementation of [knowledge.Store]
// and a pgvector-backed [knowledge.SemanticIndex].
//
// Entries, corrections and terminology live in ordinary tables. Entry
// embeddings live in entry_vectors, indexed with HNSW over cosine distance.
// The pgvector extension is only required when an embedding dimension is
// configured; [Migrate] installs it via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, postgres.WithEmbeddingDimensions(768))
//	if err != nil { … }
//	defer store.Close()
//
//	index := postgres.NewSemanticIndex(store, embedder)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const ddlEntries = `
CREATE TABLE IF NOT EXISTS entries (
    id             BIGSERIAL    PRIMARY KEY,
    created_at     TIMESTAMPTZ  NOT NULL DEFAULT now(),
    original_text  TEXT         NOT NULL,
    processed_text TEXT         NOT NULL,
    edited_text    TEXT,
    format_type    TEXT         NOT NULL DEFAULT '',
    metadata       JSONB        NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_entries_created
    ON entries (created_at DESC, id DESC);
`

const ddlLedger = `
CREATE TABLE IF NOT EXISTS corrections (
    id              BIGSERIAL    PRIMARY KEY,
    original_word   TEXT         NOT NULL,
    corrected_word  TEXT         NOT NULL,
    context_before  TEXT         NOT NULL DEFAULT '',
    context_after   TEXT         NOT NULL DEFAULT '',
    correction_type TEXT         NOT NULL,
    usage_count     INTEGER      NOT NULL DEFAULT 1 CHECK (usage_count >= 1),
    last_used       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (original_word, corrected_word)
);

CREATE INDEX IF NOT EXISTS idx_corrections_lookup
    ON corrections (original_word, usage_count DESC, last_used DESC);

CREATE TABLE IF NOT EXISTS terminology (
    term       TEXT         PRIMARY KEY,
    category   TEXT         NOT NULL,
    frequency  INTEGER      NOT NULL DEFAULT 1 CHECK (frequency >= 1),
    last_used  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// ddlVectors returns the entry_vectors DDL with the embedding dimension
// baked into the column type.
func ddlVectors(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS entry_vectors (
    entry_id    BIGINT       PRIMARY KEY,
    content     TEXT         NOT NULL,
    embedding   vector(%d)   NOT NULL,
    metadata    JSONB        NOT NULL DEFAULT '{}',
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entry_vectors_embedding
    ON entry_vectors USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Execer is satisfied by *pgx.Conn, *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Migrate creates all tables and indexes if they do not exist. It is
// idempotent and safe to call on every start. The vector table is only
// created when embeddingDimensions is positive. Changing the dimension after
// the first migration requires a manual schema change.
func Migrate(ctx context.Context, db Execer, embeddingDimensions int) error {
	statements := []string{ddlEntries, ddlLedger}
	if embeddingDimensions > 0 {
		statements = append(statements, ddlVectors(embeddingDimensions))
	}
	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
