package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/glossa/pkg/knowledge"
)

var (
	addProcessed string
	addFormat    string
	listLimit    int
)

var addCmd = &cobra.Command{
	Use:   "add <original text>",
	Short: "Store a transcription entry",
	Long: `Stores a transcription. Without --processed the original text is
stored as the processed text too.

Examples:
  glossa add "der kaffe ist kalt" --processed "Der Kaffe ist kalt."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest entries",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var editCmd = &cobra.Command{
	Use:   "edit <id> <edited text>",
	Short: "Save a human edit and learn from it",
	Long: `Saves the edited text of an entry and learns word-level corrections
from the difference to its processed text.

Examples:
  glossa edit 12 "Der Kaffee ist kalt."`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(addCmd, getCmd, listCmd, editCmd)
	addCmd.Flags().StringVar(&addProcessed, "processed", "", "processed text (default: the original text)")
	addCmd.Flags().StringVar(&addFormat, "format", "", "format type label")
	listCmd.Flags().IntVar(&listLimit, "limit", knowledge.DefaultListLimit, "maximum number of entries")
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, cleanup, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	original := strings.Join(args, " ")
	processed := addProcessed
	if processed == "" {
		processed = original
	}
	id, err := a.Service().CreateEntry(cmd.Context(), knowledge.NewEntry{
		OriginalText:  original,
		ProcessedText: processed,
		FormatType:    addFormat,
		Metadata:      map[string]any{"source": "cli"},
	})
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"entry_id": id, "status": "created"})
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, cleanup, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	e, err := a.Service().GetEntry(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(e)
}

func runList(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := a.Service().ListEntries(cmd.Context(), listLimit)
	if err != nil {
		return err
	}
	return printJSON(entries)
}

func runEdit(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, cleanup, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := a.Service().SetEditedText(cmd.Context(), id, strings.Join(args[1:], " "))
	if err != nil && !errors.Is(err, knowledge.ErrLearning) {
		return err
	}
	resp := map[string]any{
		"status":      "updated",
		"learned":     err == nil,
		"entry":       out.Entry,
		"corrections": out.Learning.Learned,
	}
	if err != nil {
		resp["learning_error"] = err.Error()
	}
	return printJSON(resp)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: entry id must be a positive integer, got %q", knowledge.ErrValidation, s)
	}
	return id, nil
}
