// Package cached decorates an [embeddings.Provider] with a TTL cache of
// vectors keyed by text, so repeated search queries skip the embedding
// backend. Concurrent requests for the same uncached text share a single
// backend call.
//
// Failed embeddings are never cached.
package cached

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/glossa/pkg/provider/embeddings"
)

// DefaultFetchTimeout bounds a shared backend call. The call outlives the
// caller that started it, so it cannot use that caller's deadline.
const DefaultFetchTimeout = 30 * time.Second

var _ embeddings.Provider = (*Provider)(nil)

// Option configures a [Provider].
type Option func(*Provider)

// WithFetchTimeout overrides [DefaultFetchTimeout]. Values ≤ 0 are ignored.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.fetchTimeout = d
		}
	}
}

// Provider is a caching [embeddings.Provider]. It is safe for concurrent use.
type Provider struct {
	next         embeddings.Provider
	cache        *gocache.Cache
	flight       singleflight.Group
	fetchTimeout time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps next with a cache whose entries expire after ttl.
func New(next embeddings.Provider, ttl time.Duration, opts ...Option) *Provider {
	p := &Provider{
		next:         next,
		cache:        gocache.New(ttl, 2*ttl),
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Embed returns the cached vector for text or fetches it from the wrapped
// provider. The returned slice is a copy the caller may modify.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := p.cache.Get(text); ok {
		p.hits.Add(1)
		return slices.Clone(v.([]float32)), nil
	}
	p.misses.Add(1)

	ch := p.flight.DoChan(text, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.fetchTimeout)
		defer cancel()
		vec, err := p.next.Embed(fctx, text)
		if err != nil {
			return nil, err
		}
		p.cache.SetDefault(text, vec)
		return vec, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("cached embeddings: embed: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]float32)), nil
	}
}

// EmbedBatch serves cached texts from the cache and fetches the rest in one
// batch call.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	var missing []string
	var missingAt []int
	for i, t := range texts {
		if v, ok := p.cache.Get(t); ok {
			p.hits.Add(1)
			out[i] = slices.Clone(v.([]float32))
			continue
		}
		p.misses.Add(1)
		missing = append(missing, t)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := p.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("cached embeddings: embed batch: want %d embeddings, got %d", len(missing), len(vecs))
	}
	for j, vec := range vecs {
		p.cache.SetDefault(missing[j], vec)
		out[missingAt[j]] = slices.Clone(vec)
	}
	return out, nil
}

// Dimensions delegates to the wrapped provider.
func (p *Provider) Dimensions() int { return p.next.Dimensions() }

// ModelID delegates to the wrapped provider.
func (p *Provider) ModelID() string { return p.next.ModelID() }

// Stats reports cache hits, misses and the number of cached vectors.
func (p *Provider) Stats() (hits, misses int64, items int) {
	return p.hits.Load(), p.misses.Load(), p.cache.ItemCount()
}

// Flush drops every cached vector.
func (p *Provider) Flush() { p.cache.Flush() }
