// Package anyllm adapts github.com/mozilla-ai/any-llm-go to [llm.Provider],
// giving the rewrite chain one client for Ollama, OpenAI, Mistral, llama.cpp
// and the other hosted backends.
//
//	p, err := anyllm.New("ollama", "qwen2.5:7b", anyllmlib.WithBaseURL("http://localhost:11434"))
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/glossa/pkg/provider/llm"
)

type constructor func(...anyllmlib.Option) (anyllmlib.Provider, error)

func adapt[P anyllmlib.Provider](fn func(...anyllmlib.Option) (P, error)) constructor {
	return func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) { return fn(opts...) }
}

var constructors = map[string]constructor{
	"anthropic": adapt(anthropic.New),
	"deepseek":  adapt(deepseek.New),
	"gemini":    adapt(gemini.New),
	"groq":      adapt(groq.New),
	"llamacpp":  adapt(llamacpp.New),
	"llamafile": adapt(llamafile.New),
	"mistral":   adapt(mistral.New),
	"ollama":    adapt(ollama.New),
	"openai":    adapt(anyllmoai.New),
}

// Backends lists the backend names accepted by [New], sorted.
var Backends = func() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}()

var _ llm.Provider = (*Provider)(nil)

// Provider sends completions through one any-llm-go backend.
type Provider struct {
	backend string
	model   string
	call    func(context.Context, anyllmlib.CompletionParams) (*llm.CompletionResponse, error)
}

// New connects model on backend (case-insensitive, one of [Backends]).
// Without [anyllmlib.WithAPIKey] hosted backends read their usual
// environment variable, e.g. OPENAI_API_KEY.
func New(backend, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if backend == "" || model == "" {
		return nil, errors.New("anyllm: backend and model are required")
	}
	backend = strings.ToLower(backend)
	ctor, ok := constructors[backend]
	if !ok {
		return nil, fmt.Errorf("anyllm: unknown backend %q (have %s)", backend, strings.Join(Backends, ", "))
	}
	client, err := ctor(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s: %w", backend, err)
	}

	return &Provider{
		backend: backend,
		model:   model,
		call: func(ctx context.Context, params anyllmlib.CompletionParams) (*llm.CompletionResponse, error) {
			out, err := client.Completion(ctx, params)
			if err != nil {
				return nil, err
			}
			if len(out.Choices) == 0 {
				return nil, errors.New("backend returned no choices")
			}
			resp := &llm.CompletionResponse{Content: out.Choices[0].Message.ContentString()}
			if u := out.Usage; u != nil {
				resp.Usage = llm.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
			}
			return resp, nil
		},
	}, nil
}

// Complete runs one non-streaming completion.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anyllm: complete: no messages")
	}
	resp, err := p.call(ctx, p.params(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s/%s: %w", p.backend, p.model, err)
	}
	return resp, nil
}

func (p *Provider) Model() string { return p.model }

func (p *Provider) params(req llm.CompletionRequest) anyllmlib.CompletionParams {
	out := anyllmlib.CompletionParams{Model: p.model}
	if req.SystemPrompt != "" {
		out.Messages = append(out.Messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}
	if req.Temperature != 0 {
		out.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = &req.MaxTokens
	}
	return out
}
