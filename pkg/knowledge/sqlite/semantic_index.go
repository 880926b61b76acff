package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/MrWong99/glossa/pkg/knowledge"
	"github.com/MrWong99/glossa/pkg/provider/embeddings"
)

// Compile-time interface assertion.
var _ knowledge.SemanticIndex = (*SemanticIndex)(nil)

// SemanticIndex stores entry embeddings in the entry_vectors table and ranks
// them by cosine similarity computed in Go. It suits the small corpora of a
// single-user deployment; use the PostgreSQL index for anything larger.
type SemanticIndex struct {
	db       *sql.DB
	embedder embeddings.Provider
	now      func() int64
}

// NewSemanticIndex returns an index sharing the database of store.
func NewSemanticIndex(store *Store, embedder embeddings.Provider) *SemanticIndex {
	return &SemanticIndex{db: store.db, embedder: embedder, now: store.stamp}
}

// Upsert implements [knowledge.SemanticIndex].
func (x *SemanticIndex) Upsert(ctx context.Context, id int64, text string, metadata map[string]any) error {
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("sqlite: index upsert %d: embed: %w: %w", id, knowledge.ErrCollaboratorUnavailable, err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("sqlite: index upsert %d: %w: empty embedding", id, knowledge.ErrCollaboratorUnavailable)
	}
	emb, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("sqlite: index upsert %d: encode embedding: %w", id, err)
	}
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return fmt.Errorf("sqlite: index upsert %d: %w", id, err)
	}

	const q = `
		INSERT INTO entry_vectors (entry_id, content, embedding, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entry_id) DO UPDATE SET
			content    = excluded.content,
			embedding  = excluded.embedding,
			metadata   = excluded.metadata,
			updated_at = excluded.updated_at`

	if _, err := x.db.ExecContext(ctx, q, id, text, string(emb), meta, x.now()); err != nil {
		return persistErr(fmt.Sprintf("index upsert %d", id), err)
	}
	return nil
}

// Query implements [knowledge.SemanticIndex]. Vectors whose dimension differs
// from the query embedding are skipped.
func (x *SemanticIndex) Query(ctx context.Context, text string, k int) ([]int64, error) {
	if k <= 0 {
		return []int64{}, nil
	}
	query, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("sqlite: index query: embed: %w: %w", knowledge.ErrCollaboratorUnavailable, err)
	}
	qNorm := norm(query)
	if qNorm == 0 {
		return []int64{}, nil
	}

	rows, err := x.db.QueryContext(ctx, `SELECT entry_id, embedding FROM entry_vectors`)
	if err != nil {
		return nil, persistErr("index query", err)
	}
	defer rows.Close()

	type scored struct {
		id    int64
		score float64
	}
	var hits []scored
	for rows.Next() {
		var (
			id  int64
			raw string
			vec []float32
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, persistErr("index query", err)
		}
		if err := json.Unmarshal([]byte(raw), &vec); err != nil || len(vec) != len(query) {
			continue
		}
		hits = append(hits, scored{id: id, score: cosine(query, vec, qNorm)})
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("index query", err)
	}

	slices.SortStableFunc(hits, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(b.id, a.id)
	})

	ids := make([]int64, 0, min(k, len(hits)))
	for _, h := range hits[:min(k, len(hits))] {
		ids = append(ids, h.id)
	}
	return ids, nil
}

// Delete implements [knowledge.SemanticIndex].
func (x *SemanticIndex) Delete(ctx context.Context, id int64) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM entry_vectors WHERE entry_id = ?`, id); err != nil {
		return persistErr(fmt.Sprintf("index delete %d", id), err)
	}
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func cosine(q, v []float32, qNorm float64) float64 {
	vNorm := norm(v)
	if vNorm == 0 {
		return 0
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
	}
	return dot / (qNorm * vNorm)
}
