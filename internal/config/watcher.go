package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often [Watcher.Run] re-reads the file.
const DefaultWatchInterval = 5 * time.Second

// ChangeFunc receives the previous and the newly loaded config.
type ChangeFunc func(old, new *Config, d ConfigDiff)

// Watcher re-reads a config file and reports valid content changes.
// Environment overrides are applied on every read, as in [Load].
// An unreadable or invalid file keeps the previous config.
type Watcher struct {
	path     string
	interval time.Duration
	lookup   func(string) (string, bool)
	onChange ChangeFunc

	mu      sync.Mutex // serializes reloads and guards current and sum
	current *Config
	sum     [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval overrides [DefaultWatchInterval]. Values ≤ 0 are ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLookup replaces [os.LookupEnv] as the source of GLOSSA_* overrides.
func WithLookup(lookup func(string) (string, bool)) WatcherOption {
	return func(w *Watcher) { w.lookup = lookup }
}

// NewWatcher loads path once and returns a watcher for it. Nothing is
// polled until [Watcher.Run] is called.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		lookup:   os.LookupEnv,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}
	cfg, sum, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.sum = cfg, sum
	return w, nil
}

// Current returns the last valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run reloads the file every interval until ctx is done. Reload errors are
// logged and polling continues.
func (w *Watcher) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := w.Reload(); err != nil {
				slog.Warn("config: keeping previous config", "path", w.path, "err", err)
			}
		}
	}
}

// Reload reads the file now. It reports whether the content changed to a
// different valid config, in which case the change callback has run.
func (w *Watcher) Reload() (bool, error) {
	cfg, sum, err := w.read()
	if err != nil {
		return false, fmt.Errorf("config: reload %s: %w", w.path, err)
	}

	w.mu.Lock()
	if sum == w.sum {
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current, w.sum = cfg, sum
	w.mu.Unlock()

	d := Diff(old, cfg)
	slog.Info("config: reloaded",
		"path", w.path,
		"log_level_changed", d.LogLevelChanged,
		"restart_required", d.RestartRequired,
	)
	if !d.Changed() {
		return false, nil
	}
	// Outside the lock: the callback may call Current.
	if w.onChange != nil {
		w.onChange(old, cfg, d)
	}
	return true, nil
}

func (w *Watcher) read() (*Config, [sha256.Size]byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	cfg, err := load(bytes.NewReader(data), w.lookup)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	return cfg, sha256.Sum256(data), nil
}
