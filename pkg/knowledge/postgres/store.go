package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/glossa/pkg/knowledge"
)

// Compile-time interface assertions.
var (
	_ knowledge.Store         = (*Store)(nil)
	_ knowledge.SemanticIndex = (*SemanticIndex)(nil)
)

// Option configures a [Store].
type Option func(*Store)

// WithEmbeddingDimensions enables the entry_vectors table with the given
// vector dimension. It must match the embeddings model.
func WithEmbeddingDimensions(dims int) Option {
	return func(s *Store) { s.dims = dims }
}

// WithClock overrides the time source for created_at and last_used.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the PostgreSQL-backed knowledge store. It holds a single
// [pgxpool.Pool] shared with any [SemanticIndex] built on top of it.
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
	dims int
	now  func() time.Time
}

// NewStore runs [Migrate] over a dedicated connection, then opens a pool to
// dsn. When an embedding dimension is configured, pgvector types are
// registered on every pooled connection.
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}

	// Migrate first: pgvector types can only be registered once the
	// extension exists.
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	err = Migrate(ctx, conn, s.dims)
	conn.Close(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if s.dims > 0 {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s.pool = pool
	return s, nil
}

// Ping implements [knowledge.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return persistErr("ping", err)
	}
	return nil
}

// Close implements [knowledge.Store].
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Stats implements [knowledge.Store].
func (s *Store) Stats(ctx context.Context) (knowledge.Stats, error) {
	const q = `
		SELECT
			(SELECT COUNT(*) FROM entries),
			(SELECT COUNT(*) FROM entries WHERE edited_text IS NOT NULL),
			(SELECT COUNT(*) FROM corrections),
			(SELECT COUNT(*) FROM terminology)`

	var total, edited, corrections, terms int64
	if err := s.pool.QueryRow(ctx, q).Scan(&total, &edited, &corrections, &terms); err != nil {
		return knowledge.Stats{}, persistErr("stats", err)
	}
	return knowledge.Stats{
		TotalEntries:     int(total),
		EditedEntries:    int(edited),
		TotalCorrections: int(corrections),
		TotalTerminology: int(terms),
		LearningRate:     knowledge.LearningRate(int(edited), int(total)),
	}, nil
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

func persistErr(op string, err error) error {
	return fmt.Errorf("postgres: %s: %w: %w", op, knowledge.ErrPersistence, err)
}
