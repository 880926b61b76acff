// Package config provides the configuration schema, loader, and provider
// registry for the glossa knowledge store.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the glossa server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l onto a [slog.Level]. Unknown and empty levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// StoreDriver selects the persistence backend.
type StoreDriver string

const (
	// DriverSQLite keeps everything in a single database file.
	DriverSQLite StoreDriver = "sqlite"

	// DriverPostgres uses PostgreSQL with pgvector for the semantic index.
	DriverPostgres StoreDriver = "postgres"
)

// IsValid reports whether d is a recognised store driver.
func (d StoreDriver) IsValid() bool {
	return d == DriverSQLite || d == DriverPostgres
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8000"
	DefaultSQLitePath      = "knowledge.db"
	DefaultLanguage        = "de"
	DefaultTemperature     = 0.1
	DefaultSearchLimit     = 10
	DefaultSemanticTimeout = 3 * time.Second
	DefaultIndexTimeout    = 10 * time.Second
	DefaultQueryCacheTTL   = 10 * time.Minute
)

// Config is the root configuration structure for glossa.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Providers ProvidersConfig `yaml:"providers"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Learning  LearningConfig  `yaml:"learning"`
	Rewrite   RewriteConfig   `yaml:"rewrite"`
}

// ServerConfig holds network and logging settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. It is the only setting applied without a
	// restart when the config file changes.
	LogLevel LogLevel `yaml:"log_level"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig selects and configures the entry store and ledger backend.
type StoreConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver StoreDriver `yaml:"driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `yaml:"sqlite_path"`

	// PostgresDSN is the connection string used by the postgres driver.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions is the vector size of the pgvector column. Zero
	// takes the dimensions of the configured embeddings provider.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// ProvidersConfig declares the remote collaborators.
type ProvidersConfig struct {
	// Embeddings backs the semantic index. When empty, search always uses
	// the substring scan.
	Embeddings ProviderEntry `yaml:"embeddings"`

	// Rewrite lists the language models tried in order by the rewrite
	// chain. When empty, transcripts are stored unrewritten.
	Rewrite []ProviderEntry `yaml:"rewrite"`

	// Transcription is the speech-to-text server used by the processing
	// pipeline. When empty, audio processing is unavailable.
	Transcription ProviderEntry `yaml:"transcription"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "ollama", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "mistral:7b").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// IsZero reports whether no provider is configured.
func (p ProviderEntry) IsZero() bool { return p.Name == "" }

// RetrievalConfig tunes the hybrid retriever.
type RetrievalConfig struct {
	// SemanticTimeout bounds a single semantic index query.
	SemanticTimeout time.Duration `yaml:"semantic_timeout"`

	// IndexTimeout bounds a single background index write.
	IndexTimeout time.Duration `yaml:"index_timeout"`

	// QueryCacheTTL is how long query embeddings are cached. Zero disables
	// the cache.
	QueryCacheTTL time.Duration `yaml:"query_cache_ttl"`

	// DefaultLimit is the search limit used when a request names none.
	DefaultLimit int `yaml:"default_limit"`
}

// LearningConfig configures what happens around correction learning.
type LearningConfig struct {
	// JournalPath, when set, appends every learning run to a JSONL file.
	JournalPath string `yaml:"journal_path"`
}

// RewriteConfig tunes the rewrite chain.
type RewriteConfig struct {
	// Language is the default transcription language.
	Language string `yaml:"language"`

	// Temperature is the sampling temperature passed to every rewrite model.
	Temperature float64 `yaml:"temperature"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig mirrors the breaker limits applied to every rewrite
// strategy. Zero values take the breaker's own defaults.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}
