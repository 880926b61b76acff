// Package suggest proposes corrections for new text from the correction
// ledger.
package suggest

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/glossa/pkg/knowledge"
)

// Lookup is the read side of the ledger the engine depends on.
type Lookup interface {
	CorrectionsFor(ctx context.Context, original string, limit int) ([]knowledge.Correction, error)
}

// Engine answers Suggest calls. It never writes to the ledger and is safe
// for concurrent use.
type Engine struct {
	lookup   Lookup
	perToken int
}

// Option configures an [Engine].
type Option func(*Engine)

// WithPerToken overrides how many corrections are considered per token.
// Values ≤ 0 are ignored.
func WithPerToken(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.perToken = n
		}
	}
}

// New returns an Engine reading from lookup.
func New(lookup Lookup, opts ...Option) *Engine {
	e := &Engine{lookup: lookup, perToken: knowledge.SuggestionsPerToken}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Suggest splits text on whitespace and looks up each token verbatim. Every
// stored correction for a token yields one suggestion at the token's index.
// The result is ordered by confidence, highest first; suggestions with equal
// confidence keep their scan order. An empty non-nil slice is returned when
// nothing matches.
func (e *Engine) Suggest(ctx context.Context, text string) ([]knowledge.Suggestion, error) {
	out := []knowledge.Suggestion{}
	seen := make(map[string][]knowledge.Correction)

	for pos, tok := range strings.Fields(text) {
		corrs, ok := seen[tok]
		if !ok {
			var err error
			corrs, err = e.lookup.CorrectionsFor(ctx, tok, e.perToken)
			if err != nil {
				return nil, fmt.Errorf("suggest: lookup %q: %w", tok, err)
			}
			seen[tok] = corrs
		}
		for _, c := range corrs {
			out = append(out, knowledge.Suggestion{
				Position:      pos,
				OriginalWord:  tok,
				SuggestedWord: c.Corrected,
				Confidence:    c.Confidence(),
				Type:          c.Type,
			})
		}
	}

	slices.SortStableFunc(out, func(a, b knowledge.Suggestion) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	return out, nil
}
