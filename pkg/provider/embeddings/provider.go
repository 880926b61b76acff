// Package embeddings defines the Provider interface for vector embedding backends.
//
// An embeddings provider maps text to dense float32 vectors (Ollama's
// nomic-embed-text, OpenAI text-embedding-3, ...). The semantic index embeds
// the processed text of every entry and every search query with one, and
// ranks entries by cosine similarity.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// Every vector from one Provider has Dimensions() elements. Vectors from
// different models live in different spaces and must never be compared, so
// changing the model means rebuilding the semantic index.
type Provider interface {
	// Embed returns the vector for text, sent to the model unchanged.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order, from as few
	// backend calls as possible. On error no partial result is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length of this provider.
	Dimensions() int

	// ModelID names the embedding model (e.g. "nomic-embed-text").
	ModelID() string
}
