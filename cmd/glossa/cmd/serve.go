package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/glossa/internal/app"
	"github.com/MrWong99/glossa/internal/config"
	"github.com/MrWong99/glossa/internal/observe"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serves the knowledge store over HTTP/JSON together with health
probes (/healthz, /readyz) and Prometheus metrics (/metrics).

With --config the file is watched: log level changes apply immediately,
every other change is reported and needs a restart.

Examples:
  glossa serve
  glossa serve --config glossa.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "reload the log level when the config file changes")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lvl := newLogger(cfg.Server.LogLevel)

	slog.Info("glossa starting",
		"version", version,
		"config", cfgFile,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Config watcher ────────────────────────────────────────────────────────
	if cfgFile != "" && serveWatch {
		w, err := config.NewWatcher(cfgFile, func(_, _ *config.Config, d config.ConfigDiff) {
			if d.LogLevelChanged {
				lvl.Set(d.NewLogLevel.SlogLevel())
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			if len(d.RestartRequired) > 0 {
				slog.Warn("config changed, restart to apply", "sections", d.RestartRequired)
			}
		})
		if err != nil {
			return err
		}
		go w.Run(ctx)
		go reloadOnHangup(ctx, w)
	}

	tel, err := observe.Setup(ctx, observe.Config{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers & application ───────────────────────────────────────────────
	providers, err := buildProviders(cfg, newRegistry(cfg))
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return err
	}
	application, err := app.New(ctx, cfg, providers,
		app.WithMetrics(tel.Metrics),
		app.WithMetricsHandler(tel.Handler),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return err
	}

	printStartupSummary(cmd, cfg, application)

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return err
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	slog.Info("goodbye")
	return nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cmd *cobra.Command, cfg *config.Config, a *app.App) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "╔═══════════════════════════════════════════╗")
	fmt.Fprintln(out, "║          glossa — startup summary         ║")
	fmt.Fprintln(out, "╠═══════════════════════════════════════════╣")
	printRow(cmd, "Store", string(cfg.Store.Driver))
	printProvider(cmd, "Embeddings", cfg.Providers.Embeddings)
	if len(cfg.Providers.Rewrite) == 0 {
		printRow(cmd, "Rewrite", "(not configured)")
	}
	for _, e := range cfg.Providers.Rewrite {
		printProvider(cmd, "Rewrite", e)
	}
	printProvider(cmd, "Transcription", cfg.Providers.Transcription)
	search := "substring"
	if a.SemanticSearch() {
		search = "semantic + substring"
	}
	printRow(cmd, "Search", search)
	printRow(cmd, "Listen addr", cfg.Server.ListenAddr)
	fmt.Fprintln(out, "╚═══════════════════════════════════════════╝")
}

func printProvider(cmd *cobra.Command, kind string, e config.ProviderEntry) {
	value := e.Name
	switch {
	case e.IsZero():
		value = "(not configured)"
	case e.Model != "":
		value = e.Name + " / " + e.Model
	}
	printRow(cmd, kind, value)
}

func printRow(cmd *cobra.Command, label, value string) {
	if r := []rune(value); len(r) > 23 {
		value = string(r[:22]) + "…"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "║  %-14s : %-23s ║\n", label, value)
}

// reloadOnHangup re-reads the config file on every SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := w.Reload(); err != nil {
				slog.Warn("config reload failed", "err", err)
			}
		}
	}
}
