// Package retrieve implements hybrid search over knowledge entries: a
// semantic index is asked first and a case-insensitive substring scan
// answers whenever the index is missing, failing, slow or empty.
//
// The semantic step is bounded by a timeout so an unreachable index never
// stalls a search. Errors from the index are logged and counted but never
// returned; [Retriever.Search] only fails when the entry store does or the
// caller's context is done.
package retrieve

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrWong99/glossa/internal/observe"
	"github.com/MrWong99/glossa/pkg/knowledge"
)

// Source names the path that produced a search result.
type Source string

const (
	// SourceSemantic means the entries came from the semantic index.
	SourceSemantic Source = "semantic"

	// SourceSubstring means the entries came from the substring scan.
	SourceSubstring Source = "substring"
)

// DefaultSemanticTimeout bounds a single semantic index query.
const DefaultSemanticTimeout = 3 * time.Second

// Fallback reasons reported to metrics and logs.
const (
	reasonDisabled   = "disabled"
	reasonError      = "error"
	reasonEmpty      = "empty"
	reasonUnresolved = "unresolved"
)

// Entries is the subset of [knowledge.EntryStore] the retriever reads.
type Entries interface {
	GetEntry(ctx context.Context, id int64) (knowledge.Entry, error)
	SearchEntries(ctx context.Context, query string, limit int) ([]knowledge.Entry, error)
}

// Option configures a [Retriever].
type Option func(*Retriever)

// WithSemanticIndex enables the semantic step. A nil index is ignored.
func WithSemanticIndex(idx knowledge.SemanticIndex) Option {
	return func(r *Retriever) { r.index = idx }
}

// WithSemanticTimeout overrides [DefaultSemanticTimeout]. Values ≤ 0 are
// ignored.
func WithSemanticTimeout(d time.Duration) Option {
	return func(r *Retriever) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Retriever) { r.metrics = m }
}

// Retriever answers hybrid searches. It holds no per-call state and is safe
// for concurrent use.
type Retriever struct {
	entries Entries
	index   knowledge.SemanticIndex
	timeout time.Duration
	metrics *observe.Metrics
}

// New returns a Retriever reading entries from store.
func New(store Entries, opts ...Option) *Retriever {
	r := &Retriever{entries: store, timeout: DefaultSemanticTimeout}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Search returns at most limit entries relevant to query together with the
// path that produced them. Semantic hits keep the index's ranking; ids the
// store no longer knows are dropped. When every id is unknown, or the index
// is unconfigured, failing or empty, the substring scan answers instead.
func (r *Retriever) Search(ctx context.Context, query string, limit int) ([]knowledge.Entry, Source, error) {
	start := time.Now()
	limit = knowledge.ClampLimit(limit, knowledge.DefaultListLimit)
	log := observe.Logger(ctx)

	if strings.TrimSpace(query) == "" {
		return []knowledge.Entry{}, SourceSubstring, nil
	}

	reason := reasonDisabled
	if r.index != nil {
		hits, why, err := r.semantic(ctx, query, limit)
		if err != nil {
			return nil, "", err
		}
		if why == "" {
			r.metrics.RecordSearch(ctx, string(SourceSemantic), "", time.Since(start).Seconds())
			return hits, SourceSemantic, nil
		}
		reason = why
	}

	found, err := r.entries.SearchEntries(ctx, query, limit)
	if err != nil {
		return nil, "", err
	}
	if reason != reasonDisabled {
		log.Debug("search fell back to substring scan", "reason", reason, "results", len(found))
	}
	r.metrics.RecordSearch(ctx, string(SourceSubstring), reason, time.Since(start).Seconds())
	return found, SourceSubstring, nil
}

// semantic runs the index step. It returns the hydrated entries and an
// empty reason on a hit, or a fallback reason otherwise. The error return
// is reserved for store failures while hydrating, which are not the
// index's fault and must reach the caller.
func (r *Retriever) semantic(ctx context.Context, query string, limit int) ([]knowledge.Entry, string, error) {
	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	ids, err := r.index.Query(qctx, query, limit)
	cancel()
	if err != nil {
		// The caller giving up is not an index failure.
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		r.metrics.RecordIndexFailure(ctx, "query")
		observe.Logger(ctx).Warn("semantic index query failed, using substring search",
			"err", errors.Join(knowledge.ErrCollaboratorUnavailable, err))
		return nil, reasonError, nil
	}
	if len(ids) == 0 {
		return nil, reasonEmpty, nil
	}

	hits := make([]knowledge.Entry, 0, min(len(ids), limit))
	for _, id := range ids {
		if len(hits) == limit {
			break
		}
		e, err := r.entries.GetEntry(ctx, id)
		if errors.Is(err, knowledge.ErrNotFound) {
			observe.Logger(ctx).Debug("dropping stale semantic hit", "entry_id", id)
			continue
		}
		if err != nil {
			return nil, "", err
		}
		hits = append(hits, e)
	}
	if len(hits) == 0 {
		return nil, reasonUnresolved, nil
	}
	return hits, "", nil
}
