// Package cmd implements the glossa command line.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/glossa/internal/app"
	"github.com/MrWong99/glossa/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "glossa",
	Short: "Correction-learning knowledge store for transcriptions",
	Long: `glossa stores transcriptions together with their rewritten and
human-edited versions, learns word-level corrections from every edit and
proposes them for new text.

Without --config the configuration is read from GLOSSA_* environment
variables alone.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the YAML configuration file")
}

// loadConfig reads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger installs a text logger on stderr whose level can be changed
// later through the returned LevelVar.
func newLogger(level config.LogLevel) *slog.LevelVar {
	lvl := new(slog.LevelVar)
	lvl.Set(level.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return lvl
}

// openApp loads the configuration and wires an application for a one-shot
// command. Logging stays at warn level so command output is not drowned.
// The returned cleanup waits for background index writes and closes the
// store.
func openApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	lvl := newLogger(cfg.Server.LogLevel)
	if lvl.Level() < slog.LevelWarn {
		lvl.Set(slog.LevelWarn)
	}

	providers, err := buildProviders(cfg, newRegistry(cfg))
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, providers)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Shutdown(context.Background()); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}
	return a, cleanup, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
