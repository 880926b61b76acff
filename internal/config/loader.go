package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"embeddings":    {"ollama", "openai"},
	"rewrite":       {"ollama", "openai", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"transcription": {"whisper"},
}

// Environment variables read by [ApplyEnv].
const (
	EnvListenAddr      = "GLOSSA_LISTEN_ADDR"
	EnvLogLevel        = "GLOSSA_LOG_LEVEL"
	EnvStoreDriver     = "GLOSSA_STORE_DRIVER"
	EnvDBPath          = "GLOSSA_KNOWLEDGE_DB_PATH"
	EnvPostgresDSN     = "GLOSSA_POSTGRES_DSN"
	EnvOllamaBaseURL   = "GLOSSA_OLLAMA_BASE_URL"
	EnvOllamaModel     = "GLOSSA_OLLAMA_MODEL"
	EnvEmbeddingsModel = "GLOSSA_EMBEDDINGS_MODEL"
	EnvWhisperURL      = "GLOSSA_WHISPER_URL"
	EnvWhisperModel    = "GLOSSA_WHISPER_MODEL"
	EnvLanguage        = "GLOSSA_WHISPER_LANGUAGE"
	EnvJournalPath     = "GLOSSA_JOURNAL_PATH"
)

// Load reads the YAML configuration file at path, applies environment
// overrides and defaults, and returns the validated [Config]. An empty path
// starts from an empty file, so a deployment can be configured from the
// environment alone.
func Load(path string) (*Config, error) {
	if path == "" {
		return load(strings.NewReader(""), os.LookupEnv)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := load(f, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. The environment is not consulted.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	return load(r, nil)
}

func load(r io.Reader, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if lookup != nil {
		ApplyEnv(cfg, lookup)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with the GLOSSA_* variables found by lookup
// (usually [os.LookupEnv]). The Ollama variables apply to every Ollama
// provider and create an Ollama rewrite model when none is configured; the
// whisper URL creates the transcription provider when it is missing.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	env := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	env(EnvListenAddr, &cfg.Server.ListenAddr)
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(v))
	}
	if v, ok := lookup(EnvStoreDriver); ok && v != "" {
		cfg.Store.Driver = StoreDriver(strings.ToLower(v))
	}
	env(EnvDBPath, &cfg.Store.SQLitePath)
	env(EnvPostgresDSN, &cfg.Store.PostgresDSN)
	env(EnvJournalPath, &cfg.Learning.JournalPath)
	env(EnvLanguage, &cfg.Rewrite.Language)

	ollamaURL, hasURL := lookup(EnvOllamaBaseURL)
	ollamaModel, hasModel := lookup(EnvOllamaModel)
	if (hasURL && ollamaURL != "") || (hasModel && ollamaModel != "") {
		if len(cfg.Providers.Rewrite) == 0 {
			cfg.Providers.Rewrite = []ProviderEntry{{Name: "ollama"}}
		}
		for i := range cfg.Providers.Rewrite {
			p := &cfg.Providers.Rewrite[i]
			if p.Name != "ollama" {
				continue
			}
			env(EnvOllamaBaseURL, &p.BaseURL)
			env(EnvOllamaModel, &p.Model)
		}
	}
	if cfg.Providers.Embeddings.Name == "ollama" {
		env(EnvOllamaBaseURL, &cfg.Providers.Embeddings.BaseURL)
	}
	if v, ok := lookup(EnvEmbeddingsModel); ok && v != "" {
		if cfg.Providers.Embeddings.Name == "" {
			cfg.Providers.Embeddings.Name = "ollama"
			env(EnvOllamaBaseURL, &cfg.Providers.Embeddings.BaseURL)
		}
		cfg.Providers.Embeddings.Model = v
	}

	if v, ok := lookup(EnvWhisperURL); ok && v != "" {
		if cfg.Providers.Transcription.Name == "" {
			cfg.Providers.Transcription.Name = "whisper"
		}
		cfg.Providers.Transcription.BaseURL = v
	}
	if cfg.Providers.Transcription.Name != "" {
		env(EnvWhisperModel, &cfg.Providers.Transcription.Model)
	}
}

// ApplyDefaults fills every unset field that has a default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverSQLite
	}
	if cfg.Store.Driver == DriverSQLite && cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = DefaultSQLitePath
	}
	if cfg.Retrieval.SemanticTimeout == 0 {
		cfg.Retrieval.SemanticTimeout = DefaultSemanticTimeout
	}
	if cfg.Retrieval.IndexTimeout == 0 {
		cfg.Retrieval.IndexTimeout = DefaultIndexTimeout
	}
	if cfg.Retrieval.DefaultLimit == 0 {
		cfg.Retrieval.DefaultLimit = DefaultSearchLimit
	}
	if cfg.Rewrite.Language == "" {
		cfg.Rewrite.Language = DefaultLanguage
	}
	if cfg.Rewrite.Temperature == 0 {
		cfg.Rewrite.Temperature = DefaultTemperature
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout %v must not be negative", cfg.Server.ReadTimeout))
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout %v must not be negative", cfg.Server.WriteTimeout))
	}

	// Store
	switch {
	case cfg.Store.Driver != "" && !cfg.Store.Driver.IsValid():
		errs = append(errs, fmt.Errorf("store.driver %q is invalid; valid values: sqlite, postgres", cfg.Store.Driver))
	case cfg.Store.Driver == DriverPostgres && cfg.Store.PostgresDSN == "":
		errs = append(errs, errors.New("store.postgres_dsn is required when store.driver is postgres"))
	}
	if cfg.Store.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("store.embedding_dimensions %d must not be negative", cfg.Store.EmbeddingDimensions))
	}

	// Providers
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("transcription", cfg.Providers.Transcription.Name)
	for i, p := range cfg.Providers.Rewrite {
		prefix := fmt.Sprintf("providers.rewrite[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
		validateProviderName("rewrite", p.Name)
	}
	if cfg.Providers.Embeddings.Name == "" && cfg.Retrieval.QueryCacheTTL > 0 {
		slog.Warn("retrieval.query_cache_ttl is set but no embeddings provider is configured; search uses the substring scan only")
	}

	// Retrieval
	if cfg.Retrieval.SemanticTimeout < 0 {
		errs = append(errs, fmt.Errorf("retrieval.semantic_timeout %v must not be negative", cfg.Retrieval.SemanticTimeout))
	}
	if cfg.Retrieval.IndexTimeout < 0 {
		errs = append(errs, fmt.Errorf("retrieval.index_timeout %v must not be negative", cfg.Retrieval.IndexTimeout))
	}
	if cfg.Retrieval.QueryCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("retrieval.query_cache_ttl %v must not be negative", cfg.Retrieval.QueryCacheTTL))
	}
	if cfg.Retrieval.DefaultLimit < 0 {
		errs = append(errs, fmt.Errorf("retrieval.default_limit %d must not be negative", cfg.Retrieval.DefaultLimit))
	}

	// Rewrite
	if cfg.Rewrite.Temperature < 0 || cfg.Rewrite.Temperature > 2 {
		errs = append(errs, fmt.Errorf("rewrite.temperature %.2f is out of range [0, 2]", cfg.Rewrite.Temperature))
	}
	cb := cfg.Rewrite.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("rewrite.circuit_breaker limits must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
