// Package ollama embeds text through the native /api/embed endpoint of an
// Ollama server. It is the default embedder of the semantic index.
//
//	p, err := ollama.New("", ollama.DefaultModel) // http://localhost:11434
//	vec, err := p.Embed(ctx, "Der Kaffee ist kalt.")
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/glossa/pkg/provider/embeddings"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	// DefaultModel is multilingual and handles German well.
	DefaultModel = "nomic-embed-text"

	probeTimeout    = 30 * time.Second
	maxResponseSize = 64 << 20
)

// modelSizes maps model name prefixes to their vector size.
var modelSizes = []struct {
	prefix string
	dims   int
}{
	{"nomic-embed-text", 768},
	{"jina-embeddings-v2-base-de", 768},
	{"mxbai-embed-large", 1024},
	{"bge-m3", 1024},
	{"all-minilm", 384},
}

var _ embeddings.Provider = (*Provider)(nil)

// APIError is a non-200 answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// Provider embeds with one Ollama model. Safe for concurrent use.
type Provider struct {
	endpoint  string
	model     string
	keepAlive string
	client    *http.Client
	dims      func() int
}

type config struct {
	timeout    time.Duration
	dimensions int
	keepAlive  string
	client     *http.Client
}

// Option configures [New].
type Option func(*config)

// WithTimeout bounds each request. Ignored with [WithHTTPClient].
func WithTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// WithDimensions fixes the vector size instead of looking it up.
func WithDimensions(n int) Option { return func(c *config) { c.dimensions = n } }

// WithKeepAlive asks the server to keep the model loaded for d, e.g. "30m".
func WithKeepAlive(d string) Option { return func(c *config) { c.keepAlive = d } }

func WithHTTPClient(hc *http.Client) Option { return func(c *config) { c.client = hc } }

// New returns a Provider for model at baseURL ([DefaultBaseURL] when empty).
//
// The vector size comes from [WithDimensions], else from a table of common
// models, else from one probe request on the first [Provider.Dimensions].
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("ollama embeddings: no model given")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.client == nil {
		cfg.client = &http.Client{Timeout: cfg.timeout}
	}

	p := &Provider{
		endpoint:  strings.TrimRight(baseURL, "/") + "/api/embed",
		model:     model,
		keepAlive: cfg.keepAlive,
		client:    cfg.client,
	}
	fixed := cfg.dimensions
	if fixed == 0 {
		fixed = lookupDimensions(model)
	}
	p.dims = sync.OnceValue(func() int {
		if fixed != 0 {
			return fixed
		}
		return p.probe()
	})
	return p, nil
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.post(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed: %w", err)
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request. An empty batch sends nothing.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.post(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed batch: %w", err)
	}
	return vecs, nil
}

// Dimensions returns the vector size, or 0 when an unknown model could not
// be probed.
func (p *Provider) Dimensions() int { return p.dims() }

func (p *Provider) ModelID() string { return p.model }

func (p *Provider) probe() int {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	vecs, err := p.post(ctx, []string{"probe"})
	if err != nil {
		return 0
	}
	return len(vecs[0])
}

func (p *Provider) post(ctx context.Context, input []string) ([][]float32, error) {
	payload, err := json.Marshal(struct {
		Model     string   `json:"model"`
		Input     []string `json:"input"`
		KeepAlive string   `json:"keep_alive,omitempty"`
	}{p.model, input, p.keepAlive})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
		Error      string      `json:"error"`
	}
	decodeErr := json.Unmarshal(body, &out)
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: out.Error}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if len(out.Embeddings) != len(input) {
		return nil, fmt.Errorf("want %d embeddings, got %d", len(input), len(out.Embeddings))
	}
	return out.Embeddings, nil
}

func lookupDimensions(model string) int {
	name := strings.ToLower(model)
	for _, m := range modelSizes {
		if strings.HasPrefix(name, m.prefix) {
			return m.dims
		}
	}
	return 0
}
