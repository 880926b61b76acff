// Package mock is an in-memory [embeddings.Provider] for tests.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/glossa/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// EmbedBatchCall is one recorded EmbedBatch invocation.
type EmbedBatchCall struct {
	Ctx   context.Context
	Texts []string
}

// Provider answers with canned vectors and records what it was asked.
// The zero value embeds every text as nil. Safe for concurrent use.
type Provider struct {
	// EmbedFunc computes the vector per text. It takes precedence over
	// EmbedResult and also serves EmbedBatch.
	EmbedFunc func(text string) ([]float32, error)
	// EmbedResult is the vector for every text when EmbedFunc is nil.
	EmbedResult []float32
	// EmbedErr fails every Embed call.
	EmbedErr error
	// EmbedBatchErr fails every EmbedBatch call.
	EmbedBatchErr error

	DimensionsValue int
	ModelIDValue    string

	mu sync.Mutex
	// Texts lists the Embed arguments in call order.
	Texts []string
	// EmbedBatchCalls lists the EmbedBatch invocations in call order.
	EmbedBatchCalls []EmbedBatchCall
}

func (p *Provider) vector(text string) ([]float32, error) {
	if p.EmbedFunc != nil {
		return p.EmbedFunc(text)
	}
	return p.EmbedResult, nil
}

// Embed records text and returns its vector or EmbedErr.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.Texts = append(p.Texts, text)
	p.mu.Unlock()
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	return p.vector(text)
}

// EmbedCallCount reports how many times Embed ran.
func (p *Provider) EmbedCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Texts)
}

// EmbedBatch records the call and embeds each text in order.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: slices.Clone(texts)})
	p.mu.Unlock()
	if p.EmbedBatchErr != nil {
		return nil, p.EmbedBatchErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.vector(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *Provider) Dimensions() int { return p.DimensionsValue }

func (p *Provider) ModelID() string { return p.ModelIDValue }
