// Package rewrite turns raw transcripts into processed text: grammar and
// spelling fixes, or reformatting into an e-mail, letter, table, list or
// translation. The entry store keeps the result as an entry's processed text
// and the correction ledger learns from how humans edit it afterwards.
package rewrite

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/glossa/pkg/knowledge"
	"github.com/MrWong99/glossa/pkg/provider/llm"
)

// Format names a rewrite recipe. It is stored verbatim as an entry's
// format type.
const (
	// FormatCorrection fixes grammar, spelling and flow only. It is the
	// recipe used for dictation and the default of the processing pipeline.
	FormatCorrection = "ollama_correction"

	FormatImprove     = "improve"
	FormatEmail       = "email"
	FormatLetter      = "letter"
	FormatTable       = "table"
	FormatList        = "list"
	FormatTranslateEN = "translate_en"
	FormatTranslateFR = "translate_fr"
)

// Rewriter rewrites text according to a format. Implementations must be
// safe for concurrent use.
type Rewriter interface {
	Rewrite(ctx context.Context, text, format string) (string, error)
}

var prompts = map[string]string{
	FormatCorrection: `Korrigiere bitte den folgenden deutschen Text. Behalte den ursprünglichen Inhalt und Stil bei. Verbessere nur Grammatik, Rechtschreibung und natürlichen Wortfluss. Antworte nur mit dem korrigierten Text.`,

	FormatImprove: `Du bist ein professioneller deutscher Texteditor. Verbessere den folgenden Text:
- Korrigiere Grammatik- und Rechtschreibfehler
- Verbessere den Schreibstil und die Klarheit
- Behalte die ursprüngliche Bedeutung bei
- Antworte nur mit dem verbesserten Text`,

	FormatEmail: `Wandle den folgenden Text in eine professionelle deutsche E-Mail um:
- Verwende eine angemessene Anrede und Schlussformel
- Strukturiere den Inhalt logisch
- Halte einen höflichen und professionellen Ton
- Antworte nur mit der E-Mail`,

	FormatLetter: `Wandle den folgenden Text in einen formellen deutschen Brief um:
- Verwende das korrekte Briefformat
- Füge Datum, Anrede und Schlussformel hinzu
- Strukturiere den Inhalt in Absätze
- Halte einen formellen Ton
- Antworte nur mit dem Brief`,

	FormatTable: `Erstelle eine übersichtliche Tabelle aus den Informationen im folgenden Text:
- Identifiziere die wichtigsten Datenpunkte
- Organisiere sie in logischen Spalten und Zeilen
- Verwende Markdown-Tabellenformat
- Antworte nur mit der Tabelle`,

	FormatList: `Wandle den folgenden Text in eine strukturierte Liste um:
- Extrahiere die wichtigsten Punkte
- Organisiere sie hierarchisch wenn nötig
- Verwende Aufzählungszeichen oder Nummerierung
- Halte die Punkte prägnant
- Antworte nur mit der Liste`,

	FormatTranslateEN: `Übersetze den folgenden deutschen Text ins Englische:
- Behalte die ursprüngliche Bedeutung und den Ton bei
- Verwende natürliches, idiomatisches Englisch
- Antworte nur mit der Übersetzung`,

	FormatTranslateFR: `Übersetze den folgenden deutschen Text ins Französische:
- Behalte die ursprüngliche Bedeutung und den Ton bei
- Verwende natürliches, idiomatisches Französisch
- Antworte nur mit der Übersetzung`,
}

// Formats returns the known format names, sorted.
func Formats() []string {
	out := make([]string, 0, len(prompts))
	for f := range prompts {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// CheckFormat returns an error matching [knowledge.ErrValidation] when
// format is not one of [Formats].
func CheckFormat(format string) error {
	if _, ok := prompts[format]; !ok {
		return fmt.Errorf("rewrite: %w: unknown format %q (known: %s)",
			knowledge.ErrValidation, format, strings.Join(Formats(), ", "))
	}
	return nil
}

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 2048
)

// Option configures an [LLMRewriter].
type Option func(*LLMRewriter)

// WithTemperature sets the sampling temperature. Default: 0.1.
func WithTemperature(t float64) Option {
	return func(r *LLMRewriter) { r.temperature = t }
}

// WithMaxTokens caps the reply length. Default: 2048.
func WithMaxTokens(n int) Option {
	return func(r *LLMRewriter) { r.maxTokens = n }
}

// LLMRewriter rewrites text with a language model. One rewriter talks to
// one model; build a [Chain] to try several models in order.
type LLMRewriter struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
}

var _ Rewriter = (*LLMRewriter)(nil)

// NewLLM returns an LLMRewriter backed by p.
func NewLLM(p llm.Provider, opts ...Option) *LLMRewriter {
	r := &LLMRewriter{provider: p, temperature: defaultTemperature, maxTokens: defaultMaxTokens}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Rewrite sends text with the prompt for format to the model. An empty
// reply is an error so a chain can move on to the next model.
func (r *LLMRewriter) Rewrite(ctx context.Context, text, format string) (string, error) {
	if err := CheckFormat(format); err != nil {
		return "", err
	}
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompts[format],
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
		Temperature:  r.temperature,
		MaxTokens:    r.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("rewrite: %s: %w", r.provider.Model(), err)
	}
	out := stripFence(resp.Content)
	if out == "" {
		return "", fmt.Errorf("rewrite: %s: empty reply", r.provider.Model())
	}
	return out, nil
}

// stripFence removes a markdown code fence (```lang … ```) wrapping the
// whole reply.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, "```")
	if !ok {
		return s
	}
	body, ok := strings.CutSuffix(rest, "```")
	if !ok {
		return s
	}
	// Drop the info string ("markdown", "text", …) on the opening line.
	if i := strings.IndexByte(body, '\n'); i >= 0 && !strings.ContainsAny(body[:i], " \t") {
		body = body[i+1:]
	}
	return strings.TrimSpace(body)
}
