package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/glossa/pkg/provider/embeddings"
	"github.com/MrWong99/glossa/pkg/provider/llm"
	"github.com/MrWong99/glossa/pkg/provider/transcribe"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider of type T from its configuration block.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is one provider kind's name → constructor table.
type factories[T any] struct {
	kind string
	m    map[string]Factory[T]
}

func newFactories[T any](kind string) factories[T] {
	return factories[T]{kind: kind, m: make(map[string]Factory[T])}
}

func (f factories[T]) create(entry ProviderEntry) (T, error) {
	factory, ok := f.m[entry.Name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	p, err := factory(entry)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("config: create %s provider %q: %w", f.kind, entry.Name, err)
	}
	return p, nil
}

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu            sync.RWMutex
	llm           factories[llm.Provider]
	embeddings    factories[embeddings.Provider]
	transcription factories[transcribe.Transcriber]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:           newFactories[llm.Provider]("llm"),
		embeddings:    newFactories[embeddings.Provider]("embeddings"),
		transcription: newFactories[transcribe.Transcriber]("transcription"),
	}
}

// RegisterLLM registers a language model factory under name. Rewrite
// providers are created from it. Subsequent calls with the same name
// overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory Factory[llm.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm.m[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory Factory[embeddings.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings.m[name] = factory
}

// RegisterTranscription registers a transcriber factory under name.
func (r *Registry) RegisterTranscription(name string, factory Factory[transcribe.Transcriber]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcription.m[name] = factory
}

// CreateLLM instantiates a language model using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(entry)
}

// CreateEmbeddings instantiates an embeddings provider using the factory
// registered under entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.embeddings.create(entry)
}

// CreateTranscription instantiates a transcriber using the factory registered
// under entry.Name.
func (r *Registry) CreateTranscription(entry ProviderEntry) (transcribe.Transcriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transcription.create(entry)
}

// Names returns the sorted names registered for kind ("llm", "embeddings"
// or "transcription").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case r.llm.kind:
		return slices.Sorted(maps.Keys(r.llm.m))
	case r.embeddings.kind:
		return slices.Sorted(maps.Keys(r.embeddings.m))
	case r.transcription.kind:
		return slices.Sorted(maps.Keys(r.transcription.m))
	}
	return nil
}

// OptString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func OptString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// OptInt extracts an integer value from a provider Options map. YAML decodes
// whole numbers as int; floats with no fraction are accepted too.
func OptInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return 0
}
