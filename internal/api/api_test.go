package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/glossa/internal/api"
	"github.com/MrWong99/glossa/internal/observe"
	"github.com/MrWong99/glossa/internal/resilience"
	"github.com/MrWong99/glossa/internal/service"
	"github.com/MrWong99/glossa/internal/transcript"
	"github.com/MrWong99/glossa/internal/transcript/rewrite"
	"github.com/MrWong99/glossa/pkg/knowledge"
	"github.com/MrWong99/glossa/pkg/knowledge/mock"
	"github.com/MrWong99/glossa/pkg/knowledge/sqlite"
	"github.com/MrWong99/glossa/pkg/provider/llm"
	llmmock "github.com/MrWong99/glossa/pkg/provider/llm/mock"
	transcribemock "github.com/MrWong99/glossa/pkg/provider/transcribe/mock"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type env struct {
	srv   *httptest.Server
	svc   *service.Service
	store *mock.Store
}

// newEnv serves the API over a fresh SQLite store. withProcessor wires a
// pipeline whose transcriber always hears "ich trinke gerne kafe".
func newEnv(t *testing.T, withProcessor bool) env {
	t.Helper()
	ctx := context.Background()
	backend, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "k.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	store := &mock.Store{Backend: backend}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	svc := service.New(store, service.WithMetrics(m))

	var opts []api.Option
	if withProcessor {
		chain := rewrite.NewChain(resilience.CircuitBreakerConfig{ResetTimeout: time.Hour}, rewrite.WithChainMetrics(m))
		chain.Add("mock", rewrite.NewLLM(&llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: "Ich trinke gerne Kaffee."},
		}))
		stt := &transcribemock.Transcriber{Text: "ich trinke gerne kafe"}
		opts = append(opts, api.WithProcessor(transcript.New(stt, chain, svc, transcript.WithMetrics(m))))
	}

	mux := http.NewServeMux()
	api.New(svc, opts...).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return env{srv: srv, svc: svc, store: store}
}

func (e env) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return send(t, req)
}

func send(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", req.Method, req.URL.Path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func (e env) create(t *testing.T, original, processed string) int64 {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/entries", map[string]any{
		"original_text":  original,
		"processed_text": processed,
		"format_type":    "ollama_correction",
		"metadata":       map[string]any{"source": "test"},
	})
	if status != http.StatusCreated {
		t.Fatalf("POST /entries: want 201, got %d %v", status, body)
	}
	return int64(body["entry_id"].(float64))
}

func TestEntriesRoundTrip(t *testing.T) {
	t.Parallel()
	e := newEnv(t, false)
	id := e.create(t, "ich trinke gerne kafe", "Ich trinke gerne Kaffee.")

	status, body := e.do(t, http.MethodGet, fmt.Sprintf("/entries/%d", id), nil)
	if status != http.StatusOK {
		t.Fatalf("GET entry: want 200, got %d", status)
	}
	if body["processed_text"] != "Ich trinke gerne Kaffee." || body["edited_text"] != nil {
		t.Errorf("GET entry: got %v", body)
	}
	if meta, _ := body["metadata"].(map[string]any); meta["source"] != "test" {
		t.Errorf("metadata: got %v", body["metadata"])
	}

	status, body = e.do(t, http.MethodPut, fmt.Sprintf("/entries/%d/edit", id), map[string]string{
		"edited_text": "Ich trinke gerne Kaffe.",
	})
	if status != http.StatusOK || body["status"] != "updated" || body["learned"] != true {
		t.Fatalf("PUT edit: got %d %v", status, body)
	}
	if corr, _ := body["corrections"].([]any); len(corr) != 1 {
		t.Errorf("corrections: want 1, got %v", body["corrections"])
	}

	status, body = e.do(t, http.MethodGet, "/entries?limit=5", nil)
	if status != http.StatusOK {
		t.Fatalf("GET entries: want 200, got %d", status)
	}
	if list, _ := body["entries"].([]any); len(list) != 1 {
		t.Errorf("entries: want 1, got %v", body["entries"])
	}

	if status, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/entries/%d", id), nil); status != http.StatusNoContent {
		t.Errorf("DELETE: want 204, got %d", status)
	}
	if status, body = e.do(t, http.MethodGet, fmt.Sprintf("/entries/%d", id), nil); status != http.StatusNotFound {
		t.Errorf("GET deleted: want 404, got %d", status)
	}
	if body["error"] == "" {
		t.Error("GET deleted: want error message")
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	e := newEnv(t, false)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"blank texts", http.MethodPost, "/entries", map[string]string{"original_text": " ", "processed_text": "x"}, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/entries", "{", http.StatusBadRequest},
		{"bad id", http.MethodGet, "/entries/abc", nil, http.StatusBadRequest},
		{"zero id", http.MethodGet, "/entries/0", nil, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/entries?limit=-3", nil, http.StatusBadRequest},
		{"missing entry", http.MethodGet, "/entries/999", nil, http.StatusNotFound},
		{"edit missing", http.MethodPut, "/entries/999/edit", map[string]string{"edited_text": "x"}, http.StatusNotFound},
		{"blank edit", http.MethodPut, "/entries/999/edit", map[string]string{"edited_text": " "}, http.StatusBadRequest},
		{"delete missing", http.MethodDelete, "/entries/999", nil, http.StatusNotFound},
		{"no processor", http.MethodPost, "/process-text", map[string]string{"text": "x"}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := e.do(t, tt.method, tt.path, tt.body)
			if status != tt.want {
				t.Errorf("%s %s: want %d, got %d %v", tt.method, tt.path, tt.want, status, body)
			}
			if _, ok := body["error"].(string); !ok {
				t.Errorf("%s %s: want JSON error body, got %v", tt.method, tt.path, body)
			}
		})
	}
}

func TestEditLearningFailureKeepsEdit(t *testing.T) {
	t.Parallel()
	e := newEnv(t, false)
	id := e.create(t, "a", "Ich trinke gerne Kaffee.")
	e.store.RecordCorrectionErr = knowledge.ErrPersistence

	status, body := e.do(t, http.MethodPut, fmt.Sprintf("/entries/%d/edit", id), map[string]string{
		"edited_text": "Ich trinke gerne Tee.",
	})
	if status != http.StatusOK {
		t.Fatalf("PUT edit: want 200, got %d %v", status, body)
	}
	if body["learned"] != false || body["learning_error"] == nil {
		t.Errorf("PUT edit: want learned=false with learning_error, got %v", body)
	}
	entry, _ := body["entry"].(map[string]any)
	if entry["edited_text"] != "Ich trinke gerne Tee." {
		t.Errorf("entry: want edit committed, got %v", entry)
	}
}

func TestSearchAndSuggestions(t *testing.T) {
	t.Parallel()
	e := newEnv(t, false)
	first := e.create(t, "ein fehler", "Ein Fehler im Test.")
	e.create(t, "alles gut", "Alles gut.")

	status, body := e.do(t, http.MethodPost, "/search", map[string]any{"query": "FEHLER"})
	if status != http.StatusOK {
		t.Fatalf("POST /search: want 200, got %d", status)
	}
	if body["source"] != "substring" {
		t.Errorf("source: want substring, got %v", body["source"])
	}
	if res, _ := body["results"].([]any); len(res) != 1 {
		t.Errorf("results: want 1, got %v", body["results"])
	}

	e.do(t, http.MethodPut, fmt.Sprintf("/entries/%d/edit", first), map[string]string{
		"edited_text": "Ein Fehler im Versuch.",
	})

	status, body = e.do(t, http.MethodGet, "/corrections/"+"noch%20ein%20Test.", nil)
	if status != http.StatusOK {
		t.Fatalf("GET /corrections/{text}: want 200, got %d", status)
	}
	sugg, _ := body["suggestions"].([]any)
	if len(sugg) != 1 {
		t.Fatalf("suggestions: want 1, got %v", body["suggestions"])
	}
	s := sugg[0].(map[string]any)
	if s["original_word"] != "Test." || s["suggested_word"] != "Versuch." || s["position"] != float64(2) {
		t.Errorf("suggestion: got %v", s)
	}

	status, body = e.do(t, http.MethodGet, "/corrections?limit=10", nil)
	if list, _ := body["corrections"].([]any); status != http.StatusOK || len(list) != 1 {
		t.Errorf("GET /corrections: got %d %v", status, body)
	}
	status, body = e.do(t, http.MethodGet, "/terminology", nil)
	if _, ok := body["terminology"].([]any); status != http.StatusOK || !ok {
		t.Errorf("GET /terminology: got %d %v", status, body)
	}

	status, body = e.do(t, http.MethodGet, "/stats", nil)
	if status != http.StatusOK || body["total_entries"] != float64(2) || body["edited_entries"] != float64(1) {
		t.Errorf("GET /stats: got %d %v", status, body)
	}
	if body["learning_rate"] != 0.5 {
		t.Errorf("learning_rate: want 0.5, got %v", body["learning_rate"])
	}
}

func TestTermHints(t *testing.T) {
	t.Parallel()
	e := newEnv(t, false)
	id := e.create(t, "x", "Wir nutzen die schnitstel heute.")
	e.do(t, http.MethodPut, fmt.Sprintf("/entries/%d/edit", id), map[string]string{
		"edited_text": "Wir nutzen die Schnittstelle heute.",
	})

	status, body := e.do(t, http.MethodGet, "/terminology/hints?text=die+Schnitstelle+bitte", nil)
	if status != http.StatusOK {
		t.Fatalf("GET hints: want 200, got %d", status)
	}
	hints, _ := body["hints"].([]any)
	if len(hints) != 1 {
		t.Fatalf("hints: want 1, got %v", body["hints"])
	}
	h := hints[0].(map[string]any)
	if h["term"] != "Schnittstelle" || h["word"] != "Schnitstelle" {
		t.Errorf("hint: got %v", h)
	}
}

func TestProcessUpload(t *testing.T) {
	t.Parallel()
	e := newEnv(t, true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "diktat.wav")
	_, _ = fw.Write([]byte("RIFF....WAVEfmt "))
	_ = mw.WriteField("format_type", "email")
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	status, body := send(t, req)
	if status != http.StatusOK {
		t.Fatalf("POST /process: want 200, got %d %v", status, body)
	}
	if body["transcript"] != "ich trinke gerne kafe" || body["strategy"] != "mock" {
		t.Errorf("result: got %v", body)
	}
	entry, _ := body["entry"].(map[string]any)
	if entry["processed_text"] != "Ich trinke gerne Kaffee." || entry["format_type"] != "email" {
		t.Errorf("entry: got %v", entry)
	}
	if meta, _ := entry["metadata"].(map[string]any); meta["filename"] != "diktat.wav" {
		t.Errorf("metadata: got %v", entry["metadata"])
	}

	st, err := e.svc.Stats(context.Background())
	if err != nil || st.TotalEntries != 1 {
		t.Errorf("Stats: want 1 entry, got %+v %v", st, err)
	}
}

func TestProcessValidation(t *testing.T) {
	t.Parallel()
	e := newEnv(t, true)

	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/process", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	if status, _ := send(t, req); status != http.StatusBadRequest {
		t.Errorf("POST /process without file: want 400, got %d", status)
	}

	status, body := e.do(t, http.MethodPost, "/process-text", map[string]string{"text": "hallo welt", "format_type": "sonett"})
	if status != http.StatusBadRequest {
		t.Errorf("POST /process-text unknown format: want 400, got %d %v", status, body)
	}
	status, body = e.do(t, http.MethodPost, "/process-text", map[string]string{"text": "hallo welt"})
	if status != http.StatusOK || body["strategy"] != "mock" {
		t.Errorf("POST /process-text: got %d %v", status, body)
	}
}
