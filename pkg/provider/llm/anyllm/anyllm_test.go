package anyllm

import (
	"context"
	"errors"
	"slices"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/glossa/pkg/provider/llm"
)

func stubbed(reply string, err error, seen *anyllmlib.CompletionParams) *Provider {
	return &Provider{backend: "ollama", model: "qwen2.5:7b", call: func(_ context.Context, params anyllmlib.CompletionParams) (*llm.CompletionResponse, error) {
		if seen != nil {
			*seen = params
		}
		if err != nil {
			return nil, err
		}
		return &llm.CompletionResponse{Content: reply}, nil
	}}
}

func TestComplete_SendsParams(t *testing.T) {
	t.Parallel()
	var seen anyllmlib.CompletionParams
	p := stubbed("Hallo Welt.", nil, &seen)

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Du bist ein Lektor.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "hallo welt"}},
		Temperature:  0.1,
		MaxTokens:    512,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Hallo Welt." {
		t.Errorf("Content: want %q, got %q", "Hallo Welt.", resp.Content)
	}
	if seen.Model != "qwen2.5:7b" || len(seen.Messages) != 2 {
		t.Fatalf("params: want model qwen2.5:7b with 2 messages, got %+v", seen)
	}
	if seen.Messages[0].Role != anyllmlib.RoleSystem || seen.Messages[0].ContentString() != "Du bist ein Lektor." {
		t.Errorf("system message: got %+v", seen.Messages[0])
	}
	if seen.Messages[1].Role != llm.RoleUser || seen.Messages[1].ContentString() != "hallo welt" {
		t.Errorf("user message: got %+v", seen.Messages[1])
	}
	if seen.Temperature == nil || *seen.Temperature != 0.1 {
		t.Errorf("Temperature: want 0.1, got %v", seen.Temperature)
	}
	if seen.MaxTokens == nil || *seen.MaxTokens != 512 {
		t.Errorf("MaxTokens: want 512, got %v", seen.MaxTokens)
	}
}

func TestComplete_BackendDefaults(t *testing.T) {
	t.Parallel()
	var seen anyllmlib.CompletionParams
	p := stubbed("x", nil, &seen)
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(seen.Messages) != 1 || seen.Temperature != nil || seen.MaxTokens != nil {
		t.Errorf("params: want one message and unset sampling, got %+v", seen)
	}
}

func TestComplete_Errors(t *testing.T) {
	t.Parallel()
	errBackend := errors.New("connection refused")
	p := stubbed("", errBackend, nil)

	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Error("Complete: want error for a request without messages")
	}
	_, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	})
	if !errors.Is(err, errBackend) {
		t.Errorf("Complete: want backend error, got %v", err)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		backend, model string
		opts           []anyllmlib.Option
		wantErr        bool
	}{
		{"ollama", "llama3", nil, false},
		{"llamacpp", "llama3", nil, false},
		{"Mistral", "mistral-small", []anyllmlib.Option{anyllmlib.WithAPIKey("k")}, false},
		{"openai", "gpt-4o-mini", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-test")}, false},
		{"", "llama3", nil, true},
		{"ollama", "", nil, true},
		{"fakecloud", "m", []anyllmlib.Option{anyllmlib.WithAPIKey("k")}, true},
	}
	for _, tc := range tests {
		p, err := New(tc.backend, tc.model, tc.opts...)
		if tc.wantErr {
			if err == nil {
				t.Errorf("New(%q, %q): want error, got nil", tc.backend, tc.model)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q, %q): %v", tc.backend, tc.model, err)
			continue
		}
		if p.Model() != tc.model {
			t.Errorf("Model: want %q, got %q", tc.model, p.Model())
		}
	}
}

func TestNew_OpenAIMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("openai", "gpt-4o"); err == nil {
		t.Error("New: want error without API key")
	}
}

func TestBackends_Sorted(t *testing.T) {
	t.Parallel()
	if !slices.IsSorted(Backends) || len(Backends) != len(constructors) {
		t.Errorf("Backends: want all %d names sorted, got %v", len(constructors), Backends)
	}
}
