package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/glossa/internal/app"
	"github.com/MrWong99/glossa/internal/config"
	"github.com/MrWong99/glossa/pkg/provider/embeddings"
	ollamaembed "github.com/MrWong99/glossa/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/glossa/pkg/provider/embeddings/openai"
	"github.com/MrWong99/glossa/pkg/provider/llm"
	"github.com/MrWong99/glossa/pkg/provider/llm/anyllm"
	"github.com/MrWong99/glossa/pkg/provider/transcribe"
	"github.com/MrWong99/glossa/pkg/provider/transcribe/whisper"
)

// newRegistry returns a registry with every built-in provider factory.
func newRegistry(cfg *config.Config) *config.Registry {
	reg := config.NewRegistry()

	// ── Rewrite LLMs ──────────────────────────────────────────────────────────
	for _, backend := range anyllm.Backends {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if n := config.OptInt(entry.Options, "dimensions"); n > 0 {
			opts = append(opts, ollamaembed.WithDimensions(n))
		}
		if ka := config.OptString(entry.Options, "keep_alive"); ka != "" {
			opts = append(opts, ollamaembed.WithKeepAlive(ka))
		}
		model := entry.Model
		if model == "" {
			model = ollamaembed.DefaultModel
		}
		return ollamaembed.New(entry.BaseURL, model, opts...)
	})

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if org := config.OptString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaembed.WithOrganization(org))
		}
		if n := config.OptInt(entry.Options, "dimensions"); n > 0 {
			opts = append(opts, oaembed.WithDimensions(n))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Transcription ─────────────────────────────────────────────────────────

	reg.RegisterTranscription("whisper", func(entry config.ProviderEntry) (transcribe.Transcriber, error) {
		opts := []whisper.Option{whisper.WithLanguage(cfg.Rewrite.Language)}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if rate := config.OptInt(entry.Options, "sample_rate"); rate > 0 {
			opts = append(opts, whisper.WithSampleRate(rate))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	for _, kind := range []string{"llm", "embeddings", "transcription"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
	return reg
}

// buildProviders instantiates all providers named in cfg using the registry.
// Unregistered names were already warned about during validation and are
// skipped.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if entry := cfg.Providers.Embeddings; !entry.IsZero() {
		p, err := reg.CreateEmbeddings(entry)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("unknown provider, skipping", "kind", "embeddings", "name", entry.Name)
		case err != nil:
			return nil, err
		default:
			ps.Embeddings = p
			slog.Info("provider created", "kind", "embeddings", "name", entry.Name, "model", p.ModelID())
		}
	}

	for i, entry := range cfg.Providers.Rewrite {
		p, err := reg.CreateLLM(entry)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("unknown provider, skipping", "kind", "llm", "name", entry.Name)
		case err != nil:
			return nil, fmt.Errorf("rewrite[%d]: %w", i, err)
		default:
			ps.Rewriters = append(ps.Rewriters, app.RewriteProvider{Name: entry.Name + "/" + entry.Model, LLM: p})
			slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
		}
	}

	if entry := cfg.Providers.Transcription; !entry.IsZero() {
		p, err := reg.CreateTranscription(entry)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("unknown provider, skipping", "kind", "transcription", "name", entry.Name)
		case err != nil:
			return nil, err
		default:
			ps.Transcriber = p
			slog.Info("provider created", "kind", "transcription", "name", entry.Name, "url", entry.BaseURL)
		}
	}

	return ps, nil
}
