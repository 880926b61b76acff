// Package sqlite provides a single-file SQLite implementation of
// [knowledge.Store] together with a [knowledge.SemanticIndex] that keeps
// entry embeddings in the same database.
//
// Usage:
//
//	store, err := sqlite.Open(ctx, "./data/knowledge.db")
//	if err != nil { … }
//	defer store.Close()
//
//	id, err := store.CreateEntry(ctx, knowledge.NewEntry{…})
//
// All writes go through a single connection, so concurrent callers are
// serialised by the pool. Counter upserts use INSERT … ON CONFLICT and never
// lose increments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/MrWong99/glossa/pkg/knowledge"
)

// driverName is the database/sql driver registered with the fold() helper
// used for Unicode-aware case-insensitive search.
const driverName = "sqlite3_glossa"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// Compile-time interface assertion.
var _ knowledge.Store = (*Store)(nil)

// Option configures a [Store].
type Option func(*Store)

// WithClock overrides the time source used for created_at and last_used.
// Tests use it to control ordering.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the SQLite-backed knowledge store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if necessary) the database at path, runs [Migrate],
// and returns a ready Store. The special path ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// One connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// DB exposes the underlying handle for components that share the database,
// such as [SemanticIndex].
func (s *Store) DB() *sql.DB { return s.db }

// Ping implements [knowledge.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return persistErr("ping", err)
	}
	return nil
}

// Close implements [knowledge.Store].
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats implements [knowledge.Store].
func (s *Store) Stats(ctx context.Context) (knowledge.Stats, error) {
	const q = `
		SELECT
			(SELECT COUNT(*) FROM entries),
			(SELECT COUNT(*) FROM entries WHERE edited_text IS NOT NULL),
			(SELECT COUNT(*) FROM corrections),
			(SELECT COUNT(*) FROM terminology)`

	var st knowledge.Stats
	err := s.db.QueryRowContext(ctx, q).Scan(
		&st.TotalEntries, &st.EditedEntries, &st.TotalCorrections, &st.TotalTerminology,
	)
	if err != nil {
		return knowledge.Stats{}, persistErr("stats", err)
	}
	st.LearningRate = knowledge.LearningRate(st.EditedEntries, st.TotalEntries)
	return st, nil
}

func (s *Store) stamp() int64 {
	return s.now().UTC().UnixMicro()
}

func fromStamp(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

func persistErr(op string, err error) error {
	return fmt.Errorf("sqlite: %s: %w: %w", op, knowledge.ErrPersistence, err)
}
