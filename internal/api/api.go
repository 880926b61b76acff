// Package api serves the knowledge store over HTTP/JSON.
//
// Routes are registered on a [http.ServeMux] with method and path patterns.
// Errors are reported as {"error": "..."} with the status derived from the
// error category: validation 400, not found 404, a missing transcription
// backend 503, transcription failures 502 and everything else 500.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/MrWong99/glossa/internal/ledger"
	"github.com/MrWong99/glossa/internal/observe"
	"github.com/MrWong99/glossa/internal/service"
	"github.com/MrWong99/glossa/internal/transcript"
	"github.com/MrWong99/glossa/internal/transcript/phonetic"
	"github.com/MrWong99/glossa/pkg/knowledge"
)

const (
	defaultSearchLimit = 10

	// maxBodyBytes bounds JSON request bodies.
	maxBodyBytes = 1 << 20

	// defaultMaxUploadBytes bounds audio uploads to /process.
	defaultMaxUploadBytes = 64 << 20
)

// errNoProcessor is reported when /process is called without a configured
// processing pipeline.
var errNoProcessor = errors.New("api: audio processing is not configured")

// Service is the knowledge service the handlers call.
type Service interface {
	CreateEntry(ctx context.Context, e knowledge.NewEntry) (int64, error)
	GetEntry(ctx context.Context, id int64) (knowledge.Entry, error)
	ListEntries(ctx context.Context, limit int) ([]knowledge.Entry, error)
	SetEditedText(ctx context.Context, id int64, edited string) (service.EditOutcome, error)
	DeleteEntry(ctx context.Context, id int64) error
	Search(ctx context.Context, query string, limit int) (service.SearchResult, error)
	Suggest(ctx context.Context, text string) ([]knowledge.Suggestion, error)
	TermHints(ctx context.Context, text string) ([]phonetic.Hint, error)
	Corrections(ctx context.Context, limit int) ([]knowledge.Correction, error)
	Terminology(ctx context.Context, limit int) ([]knowledge.Term, error)
	Stats(ctx context.Context) (knowledge.Stats, error)
}

// Processor turns recordings and transcripts into entries. It is
// satisfied by [*transcript.Pipeline].
type Processor interface {
	Process(ctx context.Context, audio []byte, opts transcript.Options) (transcript.Result, error)
	ProcessText(ctx context.Context, text string, opts transcript.Options) (transcript.Result, error)
}

var (
	_ Service   = (*service.Service)(nil)
	_ Processor = (*transcript.Pipeline)(nil)
)

// Option configures a [Handler].
type Option func(*Handler)

// WithProcessor enables POST /process and POST /process-text.
func WithProcessor(p Processor) Option {
	return func(h *Handler) { h.proc = p }
}

// WithMaxUploadBytes bounds audio uploads. Default: 64 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// WithListLimit sets the limit used when a listing request passes none.
// Default: [knowledge.DefaultListLimit].
func WithListLimit(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.listLimit = n
		}
	}
}

// WithSearchLimit sets the limit used when a search request passes none.
// Default: 10.
func WithSearchLimit(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.searchLimit = n
		}
	}
}

// Handler serves the knowledge API.
type Handler struct {
	svc         Service
	proc        Processor
	maxUpload   int64
	listLimit   int
	searchLimit int
}

// New creates a Handler over svc.
func New(svc Service, opts ...Option) *Handler {
	h := &Handler{
		svc:         svc,
		maxUpload:   defaultMaxUploadBytes,
		listLimit:   knowledge.DefaultListLimit,
		searchLimit: defaultSearchLimit,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /entries", h.createEntry)
	mux.HandleFunc("GET /entries", h.listEntries)
	mux.HandleFunc("GET /entries/{id}", h.getEntry)
	mux.HandleFunc("PUT /entries/{id}/edit", h.editEntry)
	mux.HandleFunc("DELETE /entries/{id}", h.deleteEntry)
	mux.HandleFunc("POST /search", h.search)
	mux.HandleFunc("GET /corrections/{text}", h.suggest)
	mux.HandleFunc("GET /corrections", h.listCorrections)
	mux.HandleFunc("GET /terminology", h.listTerminology)
	mux.HandleFunc("GET /terminology/hints", h.termHints)
	mux.HandleFunc("GET /stats", h.stats)
	mux.HandleFunc("POST /process", h.process)
	mux.HandleFunc("POST /process-text", h.processText)
}

// ─── Entries ─────────────────────────────────────────────────────────────────

type createEntryRequest struct {
	OriginalText  string         `json:"original_text"`
	ProcessedText string         `json:"processed_text"`
	FormatType    string         `json:"format_type"`
	Metadata      map[string]any `json:"metadata"`
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.svc.CreateEntry(r.Context(), knowledge.NewEntry{
		OriginalText:  req.OriginalText,
		ProcessedText: req.ProcessedText,
		FormatType:    req.FormatType,
		Metadata:      req.Metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry_id": id, "status": "created"})
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r, h.listLimit)
	if !ok {
		return
	}
	entries, err := h.svc.ListEntries(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.GetEntry(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type editRequest struct {
	EditedText string `json:"edited_text"`
}

type editResponse struct {
	Status      string           `json:"status"`
	Learned     bool             `json:"learned"`
	Entry       knowledge.Entry  `json:"entry"`
	Corrections []ledger.Learned `json:"corrections"`

	// LearningError is set when the edit was saved but learning from it
	// failed.
	LearningError string `json:"learning_error,omitempty"`
}

func (h *Handler) editEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var req editRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.svc.SetEditedText(r.Context(), id, req.EditedText)
	if err != nil && !errors.Is(err, knowledge.ErrLearning) {
		writeError(w, r, err)
		return
	}
	resp := editResponse{
		Status:      "updated",
		Learned:     err == nil,
		Entry:       out.Entry,
		Corrections: out.Learning.Learned,
	}
	if resp.Corrections == nil {
		resp.Corrections = []ledger.Learned{}
	}
	if err != nil {
		resp.LearningError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteEntry(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Search, suggestions & ledger ────────────────────────────────────────────

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	req := searchRequest{Limit: h.searchLimit}
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Suggest(r.Context(), r.PathValue("text"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

func (h *Handler) listCorrections(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r, h.listLimit)
	if !ok {
		return
	}
	out, err := h.svc.Corrections(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"corrections": out})
}

func (h *Handler) listTerminology(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r, h.listLimit)
	if !ok {
		return
	}
	out, err := h.svc.Terminology(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"terminology": out})
}

func (h *Handler) termHints(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.TermHints(r.Context(), r.URL.Query().Get("text"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hints": out})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ─── Processing ──────────────────────────────────────────────────────────────

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	if h.proc == nil {
		writeError(w, r, errNoProcessor)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, errors.Join(knowledge.ErrValidation, err))
		return
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		writeError(w, r, errors.Join(knowledge.ErrValidation, err))
		return
	}

	res, err := h.proc.Process(r.Context(), audio, transcript.Options{
		Language:   r.FormValue("language"),
		FormatType: r.FormValue("format_type"),
		Filename:   hdr.Filename,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type processTextRequest struct {
	Text       string `json:"text"`
	FormatType string `json:"format_type"`
	Language   string `json:"language"`
}

func (h *Handler) processText(w http.ResponseWriter, r *http.Request) {
	if h.proc == nil {
		writeError(w, r, errNoProcessor)
		return
	}
	var req processTextRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.proc.ProcessText(r.Context(), req.Text, transcript.Options{
		Language:   req.Language,
		FormatType: req.FormatType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, errors.Join(knowledge.ErrValidation, errors.New("entry id must be a positive integer")))
		return 0, false
	}
	return id, true
}

func (h *Handler) limit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, r, errors.Join(knowledge.ErrValidation, errors.New("limit must be a positive integer")))
		return 0, false
	}
	return n, true
}

// decode reads a JSON body into v. On failure it writes a 400 response and
// returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, r, errors.Join(knowledge.ErrValidation, errors.New("invalid JSON body"), err))
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, knowledge.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, knowledge.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errNoProcessor):
		return http.StatusServiceUnavailable
	case errors.Is(err, knowledge.ErrTranscriptionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
