// Package llm defines the Provider interface for the language models that
// rewrite and reformat transcripts.
//
// A provider wraps a remote or local model API (a local Ollama instance,
// OpenAI, Mistral, …) behind a single blocking completion call. Rewriting is
// a one-shot request/response exchange, so there is no streaming surface.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Roles accepted in [Message.Role].
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the prompt.
type Message struct {
	Role    string
	Content string
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// At least one message is required.
type CompletionRequest struct {
	// SystemPrompt is sent before Messages as a system-role message.
	SystemPrompt string

	Messages []Message

	// Temperature controls randomness in [0.0, 2.0]. Zero leaves the backend
	// default in place.
	Temperature float64

	// MaxTokens caps the completion length. Zero means the backend default.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req and waits for the full reply. It returns promptly
	// with ctx's error when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model names the backend model, for logs and metrics.
	Model() string
}
