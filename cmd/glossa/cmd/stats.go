package cmd

import (
	"github.com/spf13/cobra"
)

var (
	statsCorrections int
	statsTerms       int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store counters and the learning rate",
	Long: `Prints the entry, edit, correction and terminology counters and the
learning rate. With --corrections or --terms the most used ledger rows are
listed as well.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVar(&statsCorrections, "corrections", 0, "also list the N most used corrections")
	statsCmd.Flags().IntVar(&statsTerms, "terms", 0, "also list the N most frequent terms")
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	st, err := a.Service().Stats(ctx)
	if err != nil {
		return err
	}
	out := map[string]any{"stats": st}
	if statsCorrections > 0 {
		cs, err := a.Service().Corrections(ctx, statsCorrections)
		if err != nil {
			return err
		}
		out["corrections"] = cs
	}
	if statsTerms > 0 {
		ts, err := a.Service().Terminology(ctx, statsTerms)
		if err != nil {
			return err
		}
		out["terminology"] = ts
	}
	return printJSON(out)
}
