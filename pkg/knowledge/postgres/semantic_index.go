package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/glossa/pkg/knowledge"
	"github.com/MrWong99/glossa/pkg/provider/embeddings"
)

// errIndexDisabled is returned when the store was opened without an
// embedding dimension, so the entry_vectors table does not exist.
var errIndexDisabled = errors.New("postgres: semantic index disabled (no embedding dimensions configured)")

// SemanticIndex stores entry embeddings in entry_vectors and ranks them with
// the pgvector cosine distance operator over an HNSW index.
type SemanticIndex struct {
	pool     *pgxpool.Pool
	dims     int
	embedder embeddings.Provider
}

// NewSemanticIndex returns an index sharing the pool of store. The store must
// have been opened with [WithEmbeddingDimensions].
func NewSemanticIndex(store *Store, embedder embeddings.Provider) *SemanticIndex {
	return &SemanticIndex{pool: store.pool, dims: store.dims, embedder: embedder}
}

// Upsert implements [knowledge.SemanticIndex].
func (x *SemanticIndex) Upsert(ctx context.Context, id int64, text string, metadata map[string]any) error {
	if x.dims <= 0 {
		return fmt.Errorf("%w: %w", knowledge.ErrCollaboratorUnavailable, errIndexDisabled)
	}
	vec, err := x.embed(ctx, text)
	if err != nil {
		return fmt.Errorf("postgres: index upsert %d: %w", id, err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	const q = `
		INSERT INTO entry_vectors (entry_id, content, embedding, metadata, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (entry_id) DO UPDATE SET
		    content    = EXCLUDED.content,
		    embedding  = EXCLUDED.embedding,
		    metadata   = EXCLUDED.metadata,
		    updated_at = EXCLUDED.updated_at`

	if _, err := x.pool.Exec(ctx, q, id, text, pgvector.NewVector(vec), metadata); err != nil {
		return persistErr(fmt.Sprintf("index upsert %d", id), err)
	}
	return nil
}

// Query implements [knowledge.SemanticIndex]. Ids are ordered by ascending
// cosine distance (most similar first).
func (x *SemanticIndex) Query(ctx context.Context, text string, k int) ([]int64, error) {
	if x.dims <= 0 {
		return nil, fmt.Errorf("%w: %w", knowledge.ErrCollaboratorUnavailable, errIndexDisabled)
	}
	if k <= 0 {
		return []int64{}, nil
	}
	vec, err := x.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("postgres: index query: %w", err)
	}

	const q = `
		SELECT entry_id
		FROM   entry_vectors
		ORDER  BY embedding <=> $1, entry_id DESC
		LIMIT  $2`

	rows, err := x.pool.Query(ctx, q, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, persistErr("index query", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, persistErr("index query: scan rows", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// Delete implements [knowledge.SemanticIndex].
func (x *SemanticIndex) Delete(ctx context.Context, id int64) error {
	if x.dims <= 0 {
		return nil
	}
	if _, err := x.pool.Exec(ctx, `DELETE FROM entry_vectors WHERE entry_id = $1`, id); err != nil {
		return persistErr(fmt.Sprintf("index delete %d", id), err)
	}
	return nil
}

func (x *SemanticIndex) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w: %w", knowledge.ErrCollaboratorUnavailable, err)
	}
	if len(vec) != x.dims {
		return nil, fmt.Errorf("embed: %w: got %d dimensions, index expects %d", knowledge.ErrCollaboratorUnavailable, len(vec), x.dims)
	}
	return vec, nil
}
