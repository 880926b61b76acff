package cmd

import (
	"github.com/spf13/cobra"
)

var reindexLimit int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema",
	Long: `Opens the configured store, which applies all pending schema
migrations, and exits. Serving does the same on startup; this command
lets deployments migrate ahead of a rollout.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the semantic index",
	Long: `Embeds the processed text of the newest entries again and replaces
their vectors in the semantic index. Run it after switching the embeddings
model.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(migrateCmd, reindexCmd)
	reindexCmd.Flags().IntVar(&reindexLimit, "limit", 10000, "maximum number of entries to reindex")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := a.Config()
	return printJSON(map[string]any{"status": "migrated", "driver": cfg.Store.Driver})
}

func runReindex(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := a.Service().Reindex(cmd.Context(), reindexLimit)
	if err != nil {
		return err
	}
	return printJSON(rep)
}
