// Package mock provides test doubles for the knowledge interfaces.
//
// Each double records every method call for assertion in tests and exposes
// exported fields that control what it returns. All doubles are safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	idx := &mock.SemanticIndex{QueryErr: errors.New("index down")}
//
//	// inject idx into the system under test …
//
//	if got := idx.CallCount("Query"); got != 1 {
//	    t.Errorf("Query calls: want 1, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/glossa/pkg/knowledge"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// recorder is embedded by every double.
type recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *recorder) record(method string, args ...any) {
	r.calls = append(r.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of all recorded method invocations.
func (r *recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (r *recorder) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SemanticIndex
// ─────────────────────────────────────────────────────────────────────────────

// SemanticIndex is a configurable test double for [knowledge.SemanticIndex].
type SemanticIndex struct {
	recorder

	// UpsertErr is returned by [SemanticIndex.Upsert] when non-nil.
	UpsertErr error

	// QueryResult is returned by [SemanticIndex.Query], truncated to k.
	// When nil, Query returns an empty non-nil slice.
	QueryResult []int64

	// QueryErr is returned by [SemanticIndex.Query] when non-nil.
	QueryErr error

	// QueryBlocks makes Query wait until its context is done and return the
	// context error. Used to exercise caller timeouts.
	QueryBlocks bool

	// DeleteErr is returned by [SemanticIndex.Delete] when non-nil.
	DeleteErr error
}

// Upsert implements [knowledge.SemanticIndex].
func (m *SemanticIndex) Upsert(_ context.Context, id int64, text string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Upsert", id, text, metadata)
	return m.UpsertErr
}

// Query implements [knowledge.SemanticIndex].
func (m *SemanticIndex) Query(ctx context.Context, text string, k int) ([]int64, error) {
	m.mu.Lock()
	m.record("Query", text, k)
	blocks := m.QueryBlocks
	result, err := m.QueryResult, m.QueryErr
	m.mu.Unlock()

	if blocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(result))
	out = append(out, result[:min(k, len(result))]...)
	return out, nil
}

// Delete implements [knowledge.SemanticIndex].
func (m *SemanticIndex) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Delete", id)
	return m.DeleteErr
}

// Ensure SemanticIndex satisfies the interface at compile time.
var _ knowledge.SemanticIndex = (*SemanticIndex)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Store
// ─────────────────────────────────────────────────────────────────────────────

// Store wraps a real [knowledge.Store] and injects failures into selected
// methods. Methods without an injected error delegate to Backend, so tests
// can run the full write path against a real database while forcing a single
// step to fail.
type Store struct {
	recorder

	// Backend receives every call that is not failed by an *Err field.
	Backend knowledge.Store

	// CreateEntryErr fails [Store.CreateEntry] when non-nil.
	CreateEntryErr error

	// SetEditedTextErr fails [Store.SetEditedText] when non-nil.
	SetEditedTextErr error

	// SearchEntriesErr fails [Store.SearchEntries] when non-nil.
	SearchEntriesErr error

	// RecordCorrectionErr fails [Store.RecordCorrection] when non-nil.
	RecordCorrectionErr error

	// CorrectionsForErr fails [Store.CorrectionsFor] when non-nil.
	CorrectionsForErr error
}

func (m *Store) enter(method string, inject error, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(method, args...)
	return inject
}

// CreateEntry implements [knowledge.EntryStore].
func (m *Store) CreateEntry(ctx context.Context, e knowledge.NewEntry) (int64, error) {
	if err := m.enter("CreateEntry", m.CreateEntryErr, e); err != nil {
		return 0, err
	}
	return m.Backend.CreateEntry(ctx, e)
}

// GetEntry implements [knowledge.EntryStore].
func (m *Store) GetEntry(ctx context.Context, id int64) (knowledge.Entry, error) {
	_ = m.enter("GetEntry", nil, id)
	return m.Backend.GetEntry(ctx, id)
}

// ListEntries implements [knowledge.EntryStore].
func (m *Store) ListEntries(ctx context.Context, limit int) ([]knowledge.Entry, error) {
	_ = m.enter("ListEntries", nil, limit)
	return m.Backend.ListEntries(ctx, limit)
}

// SetEditedText implements [knowledge.EntryStore].
func (m *Store) SetEditedText(ctx context.Context, id int64, edited string) (knowledge.EditResult, error) {
	if err := m.enter("SetEditedText", m.SetEditedTextErr, id, edited); err != nil {
		return knowledge.EditResult{}, err
	}
	return m.Backend.SetEditedText(ctx, id, edited)
}

// SearchEntries implements [knowledge.EntryStore].
func (m *Store) SearchEntries(ctx context.Context, query string, limit int) ([]knowledge.Entry, error) {
	if err := m.enter("SearchEntries", m.SearchEntriesErr, query, limit); err != nil {
		return nil, err
	}
	return m.Backend.SearchEntries(ctx, query, limit)
}

// DeleteEntry implements [knowledge.EntryStore].
func (m *Store) DeleteEntry(ctx context.Context, id int64) error {
	_ = m.enter("DeleteEntry", nil, id)
	return m.Backend.DeleteEntry(ctx, id)
}

// RecordCorrection implements [knowledge.Ledger].
func (m *Store) RecordCorrection(ctx context.Context, obs knowledge.Observation) error {
	if err := m.enter("RecordCorrection", m.RecordCorrectionErr, obs); err != nil {
		return err
	}
	return m.Backend.RecordCorrection(ctx, obs)
}

// RecordTerminology implements [knowledge.Ledger].
func (m *Store) RecordTerminology(ctx context.Context, term string, category knowledge.CorrectionType) error {
	_ = m.enter("RecordTerminology", nil, term, category)
	return m.Backend.RecordTerminology(ctx, term, category)
}

// CorrectionsFor implements [knowledge.Ledger].
func (m *Store) CorrectionsFor(ctx context.Context, original string, limit int) ([]knowledge.Correction, error) {
	if err := m.enter("CorrectionsFor", m.CorrectionsForErr, original, limit); err != nil {
		return nil, err
	}
	return m.Backend.CorrectionsFor(ctx, original, limit)
}

// ListCorrections implements [knowledge.Ledger].
func (m *Store) ListCorrections(ctx context.Context, limit int) ([]knowledge.Correction, error) {
	_ = m.enter("ListCorrections", nil, limit)
	return m.Backend.ListCorrections(ctx, limit)
}

// ListTerminology implements [knowledge.Ledger].
func (m *Store) ListTerminology(ctx context.Context, limit int) ([]knowledge.Term, error) {
	_ = m.enter("ListTerminology", nil, limit)
	return m.Backend.ListTerminology(ctx, limit)
}

// Stats implements [knowledge.Store].
func (m *Store) Stats(ctx context.Context) (knowledge.Stats, error) {
	_ = m.enter("Stats", nil)
	return m.Backend.Stats(ctx)
}

// Ping implements [knowledge.Store].
func (m *Store) Ping(ctx context.Context) error {
	_ = m.enter("Ping", nil)
	return m.Backend.Ping(ctx)
}

// Close implements [knowledge.Store].
func (m *Store) Close() error {
	return m.Backend.Close()
}

// Ensure Store satisfies the interface at compile time.
var _ knowledge.Store = (*Store)(nil)
