package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/glossa/internal/transcript"
	"github.com/MrWong99/glossa/internal/transcript/rewrite"
)

var (
	processFormat   string
	processLanguage string
	processText     bool
)

var processCmd = &cobra.Command{
	Use:   "process <recording.wav | text>",
	Short: "Transcribe, rewrite and store a recording",
	Long: fmt.Sprintf(`Transcribes a recording with the configured transcription backend,
rewrites the transcript and stores the result as a new entry together with
the learned corrections that apply to it.

With --text the argument is taken as an existing transcript.

Formats: %s

Examples:
  glossa process diktat.wav
  glossa process --format email diktat.wav
  glossa process --text "hallo zusammen ich wollte kurz nachfragen"`, strings.Join(rewrite.Formats(), ", ")),
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringVar(&processFormat, "format", rewrite.FormatCorrection, "rewrite format")
	processCmd.Flags().StringVar(&processLanguage, "language", "", "spoken language (default: rewrite.language)")
	processCmd.Flags().BoolVar(&processText, "text", false, "treat the arguments as a transcript")
}

func runProcess(cmd *cobra.Command, args []string) error {
	opts := transcript.Options{Language: processLanguage, FormatType: processFormat}

	var audio []byte
	if !processText {
		var err error
		audio, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read recording: %w", err)
		}
		opts.Filename = filepath.Base(args[0])
	}

	a, cleanup, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	var res transcript.Result
	if processText {
		res, err = a.Pipeline().ProcessText(cmd.Context(), strings.Join(args, " "), opts)
	} else {
		res, err = a.Pipeline().Process(cmd.Context(), audio, opts)
	}
	if err != nil {
		return err
	}
	return printJSON(res)
}
