// Package app wires the knowledge store subsystems into a running
// application.
//
// The App struct owns the full lifecycle: New opens the store and connects
// the semantic index, the learning journal, the service and the processing
// pipeline; Run serves the HTTP API until its context ends; Shutdown waits
// for background index writes and closes everything in reverse order.
//
// For testing, inject doubles via functional options (WithStore,
// WithSemanticIndex, ...). When an option is not provided, New creates the
// real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/glossa/internal/api"
	"github.com/MrWong99/glossa/internal/config"
	"github.com/MrWong99/glossa/internal/health"
	"github.com/MrWong99/glossa/internal/journal"
	"github.com/MrWong99/glossa/internal/ledger"
	"github.com/MrWong99/glossa/internal/observe"
	"github.com/MrWong99/glossa/internal/resilience"
	"github.com/MrWong99/glossa/internal/service"
	"github.com/MrWong99/glossa/internal/transcript"
	"github.com/MrWong99/glossa/internal/transcript/rewrite"
	"github.com/MrWong99/glossa/pkg/knowledge"
	"github.com/MrWong99/glossa/pkg/knowledge/postgres"
	"github.com/MrWong99/glossa/pkg/knowledge/sqlite"
	"github.com/MrWong99/glossa/pkg/provider/embeddings"
	"github.com/MrWong99/glossa/pkg/provider/embeddings/cached"
	"github.com/MrWong99/glossa/pkg/provider/llm"
	"github.com/MrWong99/glossa/pkg/provider/transcribe"
)

// ShutdownTimeout bounds the HTTP server drain after Run's context ends.
const ShutdownTimeout = 15 * time.Second

// RewriteProvider is one configured rewrite strategy.
type RewriteProvider struct {
	// Name labels the strategy in logs, metrics and processing results.
	Name string
	LLM  llm.Provider
}

// Providers holds the external backends. Nil fields and an empty Rewriters
// list mean the backend is not configured. Populated by the command via the
// config registry.
type Providers struct {
	Embeddings  embeddings.Provider
	Rewriters   []RewriteProvider
	Transcriber transcribe.Transcriber
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New and torn down in Shutdown.
	store    knowledge.Store
	index    knowledge.SemanticIndex
	embedder embeddings.Provider
	observer ledger.Observer
	metrics  *observe.Metrics
	scrape   http.Handler
	svc      *service.Service
	chain    *rewrite.Chain
	pipeline *transcript.Pipeline
	handler  http.Handler

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a knowledge store instead of opening one from config.
// The caller keeps ownership: Shutdown does not close it.
func WithStore(s knowledge.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSemanticIndex injects a semantic index instead of building one over
// the store and the embeddings provider.
func WithSemanticIndex(idx knowledge.SemanticIndex) Option {
	return func(a *App) { a.index = idx }
}

// WithLearningObserver injects a learning observer instead of the file
// journal named in config.
func WithLearningObserver(o ledger.Observer) Option {
	return func(a *App) { a.observer = o }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler sets the handler served at GET /metrics, normally
// [observe.Telemetry.Handler]. Defaults to the Prometheus default registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.scrape = h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from the command (populated via the config registry); a nil
// providers value means no backends are configured.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Semantic index ────────────────────────────────────────────────
	a.initIndex()

	// ── 3. Learning journal ──────────────────────────────────────────────
	if a.observer == nil && cfg.Learning.JournalPath != "" {
		a.observer = journal.NewFileJournal(cfg.Learning.JournalPath)
	}

	// ── 4. Service ───────────────────────────────────────────────────────
	svcOpts := []service.Option{
		service.WithMetrics(a.metrics),
		service.WithSemanticTimeout(cfg.Retrieval.SemanticTimeout),
		service.WithIndexTimeout(cfg.Retrieval.IndexTimeout),
	}
	if a.index != nil {
		svcOpts = append(svcOpts, service.WithSemanticIndex(a.index))
	}
	if a.observer != nil {
		svcOpts = append(svcOpts, service.WithLearningObserver(a.observer))
	}
	a.svc = service.New(a.store, svcOpts...)

	// ── 5. Processing pipeline ───────────────────────────────────────────
	a.initPipeline()

	// ── 6. HTTP handler ──────────────────────────────────────────────────
	a.initHandler()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore opens the configured store unless one was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		dims := a.cfg.Store.EmbeddingDimensions
		if dims == 0 && a.providers.Embeddings != nil {
			dims = a.providers.Embeddings.Dimensions()
		}
		store, err := postgres.NewStore(ctx, a.cfg.Store.PostgresDSN, postgres.WithEmbeddingDimensions(dims))
		if err != nil {
			return err
		}
		a.store = store
		slog.Info("knowledge store opened", "driver", "postgres", "embedding_dimensions", dims)
	default:
		store, err := sqlite.Open(ctx, a.cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		a.store = store
		slog.Info("knowledge store opened", "driver", "sqlite", "path", a.cfg.Store.SQLitePath)
	}
	a.closers = append(a.closers, a.store.Close)
	return nil
}

// initIndex builds the semantic index on the store's own backend, with a
// query vector cache in front of the embeddings provider when configured.
func (a *App) initIndex() {
	emb := a.providers.Embeddings
	if emb == nil {
		if a.index == nil {
			slog.Warn("no embeddings provider configured, search uses substring matching only")
		}
		return
	}
	if ttl := a.cfg.Retrieval.QueryCacheTTL; ttl > 0 {
		emb = cached.New(emb, ttl)
	}
	a.embedder = emb
	if a.index != nil {
		return
	}

	switch s := a.store.(type) {
	case *sqlite.Store:
		a.index = sqlite.NewSemanticIndex(s, emb)
	case *postgres.Store:
		a.index = postgres.NewSemanticIndex(s, emb)
	default:
		slog.Warn("store has no vector support, search uses substring matching only")
		return
	}
	slog.Info("semantic index enabled", "model", emb.ModelID(), "dimensions", emb.Dimensions())
}

// initPipeline builds the rewrite chain from the configured rewriters and
// the pipeline on top of the service.
func (a *App) initPipeline() {
	cb := a.cfg.Rewrite.CircuitBreaker
	a.chain = rewrite.NewChain(resilience.CircuitBreakerConfig{
		Name:         "rewrite",
		MaxFailures:  cb.MaxFailures,
		ResetTimeout: cb.ResetTimeout,
		HalfOpenMax:  cb.HalfOpenMax,
	}, rewrite.WithChainMetrics(a.metrics))
	for _, rp := range a.providers.Rewriters {
		a.chain.Add(rp.Name, rewrite.NewLLM(rp.LLM, rewrite.WithTemperature(a.cfg.Rewrite.Temperature)))
	}
	if len(a.providers.Rewriters) == 0 {
		slog.Warn("no rewrite provider configured, transcripts are stored unchanged")
	}

	a.pipeline = transcript.New(a.providers.Transcriber, a.chain, a.svc,
		transcript.WithLanguage(a.cfg.Rewrite.Language),
		transcript.WithMetrics(a.metrics),
	)
}

// initHandler mounts the API, health probes and /metrics on one mux behind
// the observability middleware.
func (a *App) initHandler() {
	mux := http.NewServeMux()

	api.New(a.svc,
		api.WithProcessor(a.pipeline),
		api.WithSearchLimit(a.cfg.Retrieval.DefaultLimit),
	).Register(mux)

	checkers := []health.Checker{health.StoreChecker(a.store)}
	if a.embedder != nil {
		checkers = append(checkers, health.EmbeddingsChecker(a.embedder))
	}
	health.New(checkers...).Register(mux)

	if a.scrape == nil {
		a.scrape = promhttp.Handler()
	}
	mux.Handle("GET /metrics", a.scrape)

	a.handler = observe.Middleware(a.metrics)(mux)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Service returns the knowledge service.
func (a *App) Service() *service.Service { return a.svc }

// Pipeline returns the processing pipeline.
func (a *App) Pipeline() *transcript.Pipeline { return a.pipeline }

// Handler returns the HTTP handler serving the API, health probes and
// metrics.
func (a *App) Handler() http.Handler { return a.handler }

// Strategies returns the rewrite strategy names in trial order.
func (a *App) Strategies() []string { return a.chain.Strategies() }

// SemanticSearch reports whether search can use the semantic index.
func (a *App) SemanticSearch() bool { return a.index != nil }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the HTTP API on the configured address and blocks until ctx
// is cancelled or the server fails. After cancellation the server drains
// in-flight requests for up to [ShutdownTimeout].
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.cfg.Server.ListenAddr,
		Handler:      a.handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: shutdown http server: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown waits for background index writes, then runs the closers in
// reverse-init order. It respects the context deadline: if ctx expires
// first, the closers still run but ctx's error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			a.svc.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded while waiting for index writes")
			shutdownErr = ctx.Err()
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
