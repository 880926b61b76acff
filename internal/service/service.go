// Package service exposes the knowledge store operations: entries, edits
// that teach the correction ledger, hybrid search, suggestions and
// statistics. It wires the store, the semantic index and the learning
// components together and owns the failure policy between them.
//
// Writes to the entry store are all-or-nothing. Everything that follows a
// committed write (semantic indexing, learning from an edit) is best-effort:
// it is bounded, logged and counted, and never rolls back the write.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/glossa/internal/ledger"
	"github.com/MrWong99/glossa/internal/observe"
	"github.com/MrWong99/glossa/internal/retrieve"
	"github.com/MrWong99/glossa/internal/suggest"
	"github.com/MrWong99/glossa/internal/transcript/phonetic"
	"github.com/MrWong99/glossa/pkg/knowledge"
)

// DefaultIndexTimeout bounds a single semantic index write.
const DefaultIndexTimeout = 10 * time.Second

// hintTermLimit caps how many learned terms TermHints matches against.
const hintTermLimit = 500

// Option configures a [Service].
type Option func(*config)

type config struct {
	index           knowledge.SemanticIndex
	semanticTimeout time.Duration
	indexTimeout    time.Duration
	metrics         *observe.Metrics
	observers       []ledger.Observer
	matcher         *phonetic.Matcher
}

// WithSemanticIndex enables semantic indexing on create and semantic search.
func WithSemanticIndex(idx knowledge.SemanticIndex) Option {
	return func(c *config) { c.index = idx }
}

// WithSemanticTimeout bounds semantic queries during search.
func WithSemanticTimeout(d time.Duration) Option {
	return func(c *config) { c.semanticTimeout = d }
}

// WithIndexTimeout bounds semantic index writes. Values ≤ 0 are ignored.
func WithIndexTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.indexTimeout = d
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithLearningObserver registers an observer for learning runs, such as
// the learning journal.
func WithLearningObserver(o ledger.Observer) Option {
	return func(c *config) { c.observers = append(c.observers, o) }
}

// WithMatcher overrides the matcher used by [Service.TermHints].
func WithMatcher(m *phonetic.Matcher) Option {
	return func(c *config) { c.matcher = m }
}

// Service implements the exposed operations. It is safe for concurrent use.
type Service struct {
	store        knowledge.Store
	index        knowledge.SemanticIndex
	indexTimeout time.Duration
	metrics      *observe.Metrics

	learner   *ledger.Learner
	suggester *suggest.Engine
	retriever *retrieve.Retriever
	matcher   *phonetic.Matcher

	// indexing tracks background index writes.
	indexing sync.WaitGroup
}

// New creates a Service over store. The store handle is owned by the
// caller, who closes it after [Service.Wait].
func New(store knowledge.Store, opts ...Option) *Service {
	cfg := config{indexTimeout: DefaultIndexTimeout}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}
	if cfg.matcher == nil {
		cfg.matcher = phonetic.New()
	}

	learnOpts := make([]ledger.Option, 0, len(cfg.observers))
	for _, o := range cfg.observers {
		learnOpts = append(learnOpts, ledger.WithObserver(o))
	}
	retrieveOpts := []retrieve.Option{
		retrieve.WithMetrics(cfg.metrics),
		retrieve.WithSemanticTimeout(cfg.semanticTimeout),
	}
	if cfg.index != nil {
		retrieveOpts = append(retrieveOpts, retrieve.WithSemanticIndex(cfg.index))
	}

	return &Service{
		store:        store,
		index:        cfg.index,
		indexTimeout: cfg.indexTimeout,
		metrics:      cfg.metrics,
		learner:      ledger.New(store, learnOpts...),
		suggester:    suggest.New(store),
		retriever:    retrieve.New(store, retrieveOpts...),
		matcher:      cfg.matcher,
	}
}

// Wait blocks until background index writes have finished.
func (s *Service) Wait() { s.indexing.Wait() }

// ─── Entries ─────────────────────────────────────────────────────────────────

// CreateEntry validates and commits e and returns its id. The entry is then
// indexed in the background; indexing failures never fail the create.
func (s *Service) CreateEntry(ctx context.Context, e knowledge.NewEntry) (int64, error) {
	id, err := s.store.CreateEntry(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("service: create entry: %w", err)
	}
	s.metrics.EntriesCreated.Add(ctx, 1)
	observe.Logger(ctx).Info("entry created", "entry_id", id, "format_type", e.FormatType)

	if s.index != nil {
		meta := map[string]any{
			"entry_id":    id,
			"format_type": e.FormatType,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}
		// The request context ends with the response; the index write must not.
		bg := context.WithoutCancel(ctx)
		s.indexing.Go(func() {
			ictx, cancel := context.WithTimeout(bg, s.indexTimeout)
			defer cancel()
			if err := s.index.Upsert(ictx, id, e.ProcessedText, meta); err != nil {
				s.metrics.RecordIndexFailure(bg, "upsert")
				observe.Logger(bg).Warn("failed to index entry",
					"entry_id", id, "err", errors.Join(knowledge.ErrCollaboratorUnavailable, err))
			}
		})
	}
	return id, nil
}

// GetEntry returns the entry with id or an error matching
// [knowledge.ErrNotFound].
func (s *Service) GetEntry(ctx context.Context, id int64) (knowledge.Entry, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return knowledge.Entry{}, fmt.Errorf("service: get entry %d: %w", id, err)
	}
	return e, nil
}

// ListEntries returns up to limit entries, most recent first.
func (s *Service) ListEntries(ctx context.Context, limit int) ([]knowledge.Entry, error) {
	entries, err := s.store.ListEntries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: list entries: %w", err)
	}
	return entries, nil
}

// EditOutcome is the result of [Service.SetEditedText].
type EditOutcome struct {
	Entry    knowledge.Entry `json:"entry"`
	Learning ledger.Report   `json:"learning"`
}

// SetEditedText commits the human edit of an entry and then learns from the
// difference between the entry's processed text and the edit.
//
// Committing and learning are separate transactions. When learning fails the
// edit stays committed: the returned outcome holds the updated entry and the
// error matches [knowledge.ErrLearning]. Any other error means nothing was
// written.
func (s *Service) SetEditedText(ctx context.Context, id int64, edited string) (EditOutcome, error) {
	res, err := s.store.SetEditedText(ctx, id, edited)
	if err != nil {
		return EditOutcome{}, fmt.Errorf("service: set edited text %d: %w", id, err)
	}
	out := EditOutcome{Entry: res.Entry}

	report, err := s.learner.LearnFromEdit(ctx, id, res.ProcessedText, edited)
	out.Learning = report
	for _, l := range report.Learned {
		s.metrics.RecordLearned(ctx, string(l.Type))
	}
	if err != nil {
		s.metrics.LearningFailures.Add(ctx, 1)
		observe.Logger(ctx).Error("learning from edit failed, edit kept", "entry_id", id, "err", err)
		return out, fmt.Errorf("service: set edited text %d: %w", id, err)
	}
	observe.Logger(ctx).Info("entry edited", "entry_id", id, "learned", len(report.Learned))
	return out, nil
}

// DeleteEntry removes an entry and, best-effort, its semantic vector.
func (s *Service) DeleteEntry(ctx context.Context, id int64) error {
	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("service: delete entry %d: %w", id, err)
	}
	if s.index != nil {
		ictx, cancel := context.WithTimeout(ctx, s.indexTimeout)
		defer cancel()
		if err := s.index.Delete(ictx, id); err != nil {
			s.metrics.RecordIndexFailure(ctx, "delete")
			observe.Logger(ctx).Warn("failed to remove entry from index",
				"entry_id", id, "err", errors.Join(knowledge.ErrCollaboratorUnavailable, err))
		}
	}
	return nil
}

// ReindexReport is the outcome of [Service.Reindex].
type ReindexReport struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// Reindex upserts the processed text of the newest limit entries into the
// semantic index, as needed after the embeddings model changes. Individual
// failures are counted and logged; only a missing index or a failed
// listing is an error.
func (s *Service) Reindex(ctx context.Context, limit int) (ReindexReport, error) {
	if s.index == nil {
		return ReindexReport{}, fmt.Errorf("service: reindex: %w: no semantic index configured", knowledge.ErrCollaboratorUnavailable)
	}
	entries, err := s.store.ListEntries(ctx, limit)
	if err != nil {
		return ReindexReport{}, fmt.Errorf("service: reindex: %w", err)
	}

	var rep ReindexReport
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("service: reindex: %w", err)
		}
		meta := map[string]any{
			"entry_id":    e.ID,
			"format_type": e.FormatType,
			"timestamp":   e.CreatedAt.UTC().Format(time.RFC3339),
		}
		ictx, cancel := context.WithTimeout(ctx, s.indexTimeout)
		err := s.index.Upsert(ictx, e.ID, e.ProcessedText, meta)
		cancel()
		if err != nil {
			rep.Failed++
			s.metrics.RecordIndexFailure(ctx, "upsert")
			observe.Logger(ctx).Warn("failed to reindex entry", "entry_id", e.ID, "err", err)
			continue
		}
		rep.Indexed++
	}
	observe.Logger(ctx).Info("semantic index rebuilt", "indexed", rep.Indexed, "failed", rep.Failed)
	return rep, nil
}

// ─── Search & suggestions ────────────────────────────────────────────────────

// SearchResult is the result of [Service.Search].
type SearchResult struct {
	Entries []knowledge.Entry `json:"results"`
	Source  retrieve.Source   `json:"source"`
}

// Search runs a hybrid search. Semantic index failures are never returned;
// they turn the search into a substring search.
func (s *Service) Search(ctx context.Context, query string, limit int) (SearchResult, error) {
	entries, src, err := s.retriever.Search(ctx, query, limit)
	if err != nil {
		return SearchResult{}, fmt.Errorf("service: search: %w", err)
	}
	return SearchResult{Entries: entries, Source: src}, nil
}

// Suggest proposes learned corrections for the tokens of text.
func (s *Service) Suggest(ctx context.Context, text string) ([]knowledge.Suggestion, error) {
	out, err := s.suggester.Suggest(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("service: suggest: %w", err)
	}
	s.metrics.Suggestions.Add(ctx, int64(len(out)))
	return out, nil
}

// TermHints proposes learned terminology for tokens of text that sound like
// a known term. Tokens the ledger already has corrections for are left to
// [Service.Suggest].
func (s *Service) TermHints(ctx context.Context, text string) ([]phonetic.Hint, error) {
	terms, err := s.store.ListTerminology(ctx, hintTermLimit)
	if err != nil {
		return nil, fmt.Errorf("service: term hints: %w", err)
	}
	names := make([]string, len(terms))
	for i, t := range terms {
		names[i] = t.Term
	}

	var lookupErr error
	known := func(word string) bool {
		if lookupErr != nil {
			return true
		}
		corrs, err := s.store.CorrectionsFor(ctx, word, 1)
		if err != nil {
			lookupErr = err
			return true
		}
		return len(corrs) > 0
	}
	hints := s.matcher.Hints(text, names, known)
	if lookupErr != nil {
		return nil, fmt.Errorf("service: term hints: %w", lookupErr)
	}
	return hints, nil
}

// ─── Ledger & stats ──────────────────────────────────────────────────────────

// Corrections lists learned corrections, most used first.
func (s *Service) Corrections(ctx context.Context, limit int) ([]knowledge.Correction, error) {
	out, err := s.store.ListCorrections(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: list corrections: %w", err)
	}
	return out, nil
}

// Terminology lists learned terms, most frequent first.
func (s *Service) Terminology(ctx context.Context, limit int) ([]knowledge.Term, error) {
	out, err := s.store.ListTerminology(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: list terminology: %w", err)
	}
	return out, nil
}

// Stats returns aggregate counters and the learning rate.
func (s *Service) Stats(ctx context.Context) (knowledge.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return knowledge.Stats{}, fmt.Errorf("service: stats: %w", err)
	}
	return st, nil
}
