package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search entries",
	Long: `Searches entries semantically when an embeddings provider is
configured and falls back to substring matching otherwise.

Examples:
  glossa search "Kaffee"
  glossa search --limit 3 "Besprechung am Montag"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <text>",
	Short: "Propose learned corrections for a text",
	Long: `Looks up every word of the text in the correction ledger and
prints the learned replacements, most confident first.

Examples:
  glossa suggest "der kaffe ist kalt"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(searchCmd, suggestCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum number of results (default: retrieval.default_limit)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, cleanup, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	limit := searchLimit
	if limit <= 0 {
		limit = a.Config().Retrieval.DefaultLimit
	}
	res, err := a.Service().Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	a, cleanup, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := a.Service().Suggest(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	return printJSON(out)
}
