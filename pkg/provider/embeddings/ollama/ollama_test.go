package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/glossa/pkg/provider/embeddings/ollama"
)

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	KeepAlive string   `json:"keep_alive"`
}

// embedServer answers /api/embed with vector i+1 repeated dim times for the
// i-th input and reports every decoded request on the returned channel.
func embedServer(t *testing.T, dim int) (*httptest.Server, <-chan embedRequest) {
	t.Helper()
	reqs := make(chan embedRequest, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			t.Errorf("request: want POST /api/embed, got %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		reqs <- req
		vecs := make([][]float32, len(req.Input))
		for i := range vecs {
			vecs[i] = slices.Repeat([]float32{float32(i + 1)}, dim)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": vecs})
	}))
	t.Cleanup(srv.Close)
	return srv, reqs
}

func TestNew_EmptyModel(t *testing.T) {
	t.Parallel()
	if _, err := ollama.New("", ""); err == nil {
		t.Fatal("New: want error for empty model, got nil")
	}
}

func TestEmbed(t *testing.T) {
	t.Parallel()
	srv, reqs := embedServer(t, 3)
	p, err := ollama.New(srv.URL+"/", ollama.DefaultModel, ollama.WithKeepAlive("30m"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Embed(context.Background(), "Der Kaffee ist kalt.")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !slices.Equal(got, []float32{1, 1, 1}) {
		t.Errorf("Embed: want [1 1 1], got %v", got)
	}
	req := <-reqs
	if req.Model != ollama.DefaultModel || req.KeepAlive != "30m" || !slices.Equal(req.Input, []string{"Der Kaffee ist kalt."}) {
		t.Errorf("request: got %+v", req)
	}
}

func TestEmbedBatch(t *testing.T) {
	t.Parallel()
	srv, reqs := embedServer(t, 2)
	p, err := ollama.New(srv.URL, ollama.DefaultModel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(got) != 3 || got[2][0] != 3 {
		t.Errorf("EmbedBatch: want 3 ordered vectors, got %v", got)
	}
	if n := len((<-reqs).Input); n != 3 {
		t.Errorf("request inputs: want 3 in one request, got %d", n)
	}

	if got, err := p.EmbedBatch(context.Background(), nil); err != nil || got != nil {
		t.Errorf("EmbedBatch(nil): want nil, nil, got %v, %v", got, err)
	}
}

func TestDimensions_KnownModels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		model string
		want  int
	}{
		{"nomic-embed-text", 768},
		{"nomic-embed-text:latest", 768},
		{"mxbai-embed-large", 1024},
		{"bge-m3", 1024},
		{"all-minilm", 384},
	}
	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			t.Parallel()
			// Unreachable: the table must answer without a request.
			p, err := ollama.New("http://127.0.0.1:1", tc.model)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := p.Dimensions(); got != tc.want {
				t.Errorf("Dimensions: want %d, got %d", tc.want, got)
			}
		})
	}
}

func TestDimensions_ProbesOnce(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{make([]float32, 512)}})
	}))
	defer srv.Close()

	p, err := ollama.New(srv.URL, "custom-embed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for range 3 {
		if got := p.Dimensions(); got != 512 {
			t.Errorf("Dimensions: want 512, got %d", got)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("probe requests: want 1, got %d", n)
	}
}

func TestDimensions_Option(t *testing.T) {
	t.Parallel()
	p, err := ollama.New("http://127.0.0.1:1", "custom-model", ollama.WithDimensions(256))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.Dimensions(); got != 256 {
		t.Errorf("Dimensions: want 256, got %d", got)
	}
	if got := p.ModelID(); got != "custom-model" {
		t.Errorf("ModelID: want custom-model, got %q", got)
	}
}

func TestEmbed_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"status with message", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model \"x\" not found, try pulling it first"}`))
		}, "not found"},
		{"plain status", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}, "status 500"},
		{"malformed", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not-json"))
		}, "decode"},
		{"count mismatch", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"embeddings":[]}`))
		}, "want 1 embeddings"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			p, err := ollama.New(srv.URL, ollama.DefaultModel)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, err = p.Embed(context.Background(), "hallo")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Embed: want error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEmbed_ServerDown(t *testing.T) {
	t.Parallel()
	p, err := ollama.New("http://127.0.0.1:1", ollama.DefaultModel, ollama.WithTimeout(500*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Embed(context.Background(), "hallo"); err == nil {
		t.Fatal("Embed: want error for unreachable server, got nil")
	}
}

func TestEmbed_ContextCancelled(t *testing.T) {
	t.Parallel()
	stop := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-stop:
		}
	}))
	defer srv.Close()
	defer close(stop)

	p, err := ollama.New(srv.URL, ollama.DefaultModel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := p.Embed(ctx, "hallo"); err == nil {
		t.Fatal("Embed: want context error, got nil")
	}
}

func TestEmbed_APIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"input too long"}`))
	}))
	defer srv.Close()

	p, err := ollama.New(srv.URL, ollama.DefaultModel)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.EmbedBatch(context.Background(), []string{"a", "b"})
	var apiErr *ollama.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("EmbedBatch: want *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "input too long" {
		t.Errorf("APIError: want 400 input too long, got %d %q", apiErr.Status, apiErr.Message)
	}
}
