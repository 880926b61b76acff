// Package transcript turns recorded speech into knowledge entries.
//
// A [Pipeline] transcribes a recording, rewrites the transcript with the
// configured rewrite chain and stores both texts as a new entry. Suggestions
// from the correction ledger for the raw transcript are looked up while the
// rewrite runs and returned with the entry, so a client can show them next to
// the text the human is about to edit.
package transcript

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/glossa/internal/observe"
	"github.com/MrWong99/glossa/internal/transcript/rewrite"
	"github.com/MrWong99/glossa/pkg/knowledge"
	"github.com/MrWong99/glossa/pkg/provider/transcribe"
)

// Store is the part of the knowledge service the pipeline writes to.
type Store interface {
	CreateEntry(ctx context.Context, e knowledge.NewEntry) (int64, error)
	GetEntry(ctx context.Context, id int64) (knowledge.Entry, error)
	Suggest(ctx context.Context, text string) ([]knowledge.Suggestion, error)
}

// Rewriter produces processed text. It is satisfied by [*rewrite.Chain].
type Rewriter interface {
	Rewrite(ctx context.Context, text, format string) (rewrite.Outcome, error)
}

// Options describes one processing request.
type Options struct {
	// Language is the spoken language (ISO 639-1). Empty uses the
	// pipeline default.
	Language string

	// FormatType selects the rewrite recipe. Empty means
	// [rewrite.FormatCorrection].
	FormatType string

	// Filename is recorded in the entry metadata.
	Filename string
}

// Result is the outcome of a processing request.
type Result struct {
	Entry       knowledge.Entry        `json:"entry"`
	Transcript  string                 `json:"transcript"`
	Suggestions []knowledge.Suggestion `json:"suggestions"`

	// Strategy names the rewrite strategy that produced the processed text.
	Strategy string `json:"strategy"`
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithLanguage sets the default spoken language. Default: "de".
func WithLanguage(lang string) Option {
	return func(p *Pipeline) { p.language = lang }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline processes recordings into entries. It is safe for concurrent use.
type Pipeline struct {
	transcriber transcribe.Transcriber
	rewriter    Rewriter
	store       Store
	language    string
	metrics     *observe.Metrics
}

// New creates a Pipeline. transcriber may be nil when only
// [Pipeline.ProcessText] is used.
func New(transcriber transcribe.Transcriber, rewriter Rewriter, store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		transcriber: transcriber,
		rewriter:    rewriter,
		store:       store,
		language:    "de",
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Process transcribes audio and stores the result as a new entry.
// Transcription failures, including an empty transcript, match
// [knowledge.ErrTranscriptionFailed]; a rewrite
// failure never fails the request, the transcript is stored unchanged
// instead.
func (p *Pipeline) Process(ctx context.Context, audio []byte, opts Options) (Result, error) {
	opts = p.defaults(opts)
	if err := rewrite.CheckFormat(opts.FormatType); err != nil {
		return Result{}, fmt.Errorf("transcript: process: %w", err)
	}
	if p.transcriber == nil {
		return Result{}, fmt.Errorf("transcript: process: %w: no transcription backend configured", knowledge.ErrTranscriptionFailed)
	}

	start := time.Now()
	text, err := p.transcriber.Transcribe(ctx, audio, opts.Language)
	p.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return Result{}, fmt.Errorf("transcript: process: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("transcript: process: %w: empty transcript", knowledge.ErrTranscriptionFailed)
	}
	observe.Logger(ctx).Debug("transcribed recording",
		"filename", opts.Filename, "bytes", len(audio), "chars", len(text))
	return p.commit(ctx, text, opts)
}

// ProcessText runs the rewrite and storage steps on an existing
// transcript.
func (p *Pipeline) ProcessText(ctx context.Context, text string, opts Options) (Result, error) {
	opts = p.defaults(opts)
	if err := rewrite.CheckFormat(opts.FormatType); err != nil {
		return Result{}, fmt.Errorf("transcript: process text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("transcript: process text: %w: empty transcript", knowledge.ErrValidation)
	}
	return p.commit(ctx, text, opts)
}

func (p *Pipeline) defaults(opts Options) Options {
	if opts.Language == "" {
		opts.Language = p.language
	}
	if opts.FormatType == "" {
		opts.FormatType = rewrite.FormatCorrection
	}
	return opts
}

// commit rewrites text, looks up suggestions concurrently and commits the
// entry.
func (p *Pipeline) commit(ctx context.Context, text string, opts Options) (Result, error) {
	var (
		outcome     rewrite.Outcome
		suggestions []knowledge.Suggestion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		outcome, err = p.rewriter.Rewrite(gctx, text, opts.FormatType)
		return err
	})
	g.Go(func() error {
		var err error
		suggestions, err = p.store.Suggest(gctx, text)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("transcript: process: %w", err)
	}

	meta := map[string]any{
		"language":  opts.Language,
		"rewritten": outcome.Rewritten,
		"strategy":  outcome.Strategy,
	}
	if opts.Filename != "" {
		meta["filename"] = opts.Filename
	}
	id, err := p.store.CreateEntry(ctx, knowledge.NewEntry{
		OriginalText:  text,
		ProcessedText: outcome.Text,
		FormatType:    opts.FormatType,
		Metadata:      meta,
	})
	if err != nil {
		return Result{}, fmt.Errorf("transcript: process: %w", err)
	}
	entry, err := p.store.GetEntry(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("transcript: process: %w", err)
	}
	observe.Logger(ctx).Info("processed transcript",
		"entry_id", id, "format_type", opts.FormatType, "strategy", outcome.Strategy)
	return Result{
		Entry:       entry,
		Transcript:  text,
		Suggestions: suggestions,
		Strategy:    outcome.Strategy,
	}, nil
}
