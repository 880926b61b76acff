package knowledge

import (
	"fmt"
	"strings"
	"time"
)

// DefaultListLimit is applied when a caller passes a non-positive limit to a
// listing operation.
const DefaultListLimit = 50

// SuggestionsPerToken caps how many corrections are suggested for a single
// token.
const SuggestionsPerToken = 3

// CorrectionType labels a learned substitution.
type CorrectionType string

const (
	// ProperName marks a correction that introduces a capitalised name.
	ProperName CorrectionType = "proper_name"

	// Capitalization marks a correction that differs only in letter case.
	Capitalization CorrectionType = "capitalization"

	// Mishearing marks a close respelling of a similar-sounding word.
	Mishearing CorrectionType = "mishearing"

	// Terminology marks a substitution with a dissimilar domain term.
	Terminology CorrectionType = "terminology"

	// Grammar is the catch-all for short edits.
	Grammar CorrectionType = "grammar"
)

// IsValid reports whether t is a recognised correction type.
func (t CorrectionType) IsValid() bool {
	switch t {
	case ProperName, Capitalization, Mishearing, Terminology, Grammar:
		return true
	}
	return false
}

// FeedsTerminology reports whether corrections of this type contribute the
// corrected phrase to the terminology table.
func (t CorrectionType) FeedsTerminology() bool {
	return t == ProperName || t == Terminology
}

// Entry is one stored transcription event.
type Entry struct {
	// ID is the surrogate key assigned on creation.
	ID int64 `json:"id"`

	// CreatedAt is set once when the entry is inserted.
	CreatedAt time.Time `json:"created_at"`

	// OriginalText is the machine transcription. Immutable.
	OriginalText string `json:"original_text"`

	// ProcessedText is the machine-rewritten text. Immutable.
	ProcessedText string `json:"processed_text"`

	// EditedText is the latest human correction. Nil until the first edit.
	EditedText *string `json:"edited_text"`

	// FormatType names the rewrite recipe that produced ProcessedText.
	FormatType string `json:"format_type"`

	// Metadata is an opaque payload never interpreted by the store.
	Metadata map[string]any `json:"metadata"`
}

// Edited reports whether the entry carries a human edit.
func (e Entry) Edited() bool { return e.EditedText != nil }

// NewEntry is the input to [EntryStore.CreateEntry].
type NewEntry struct {
	OriginalText  string
	ProcessedText string
	FormatType    string
	Metadata      map[string]any
}

// Validate rejects entries whose texts are blank.
func (n NewEntry) Validate() error {
	if strings.TrimSpace(n.OriginalText) == "" {
		return fmt.Errorf("%w: original text is empty", ErrValidation)
	}
	if strings.TrimSpace(n.ProcessedText) == "" {
		return fmt.Errorf("%w: processed text is empty", ErrValidation)
	}
	return nil
}

// EditResult is returned by [EntryStore.SetEditedText].
type EditResult struct {
	// Entry is the entry after the edit was committed.
	Entry Entry

	// ProcessedText is the machine text observed in the same transaction as
	// the write. The learning path diffs it against the edit.
	ProcessedText string
}

// Observation is one sighting of a correction passed to
// [Ledger.RecordCorrection].
type Observation struct {
	Original      string
	Corrected     string
	ContextBefore string
	ContextAfter  string
	Type          CorrectionType
}

// Correction is a learned substitution rule.
type Correction struct {
	ID            int64          `json:"id"`
	Original      string         `json:"original_word"`
	Corrected     string         `json:"corrected_word"`
	ContextBefore string         `json:"context_before"`
	ContextAfter  string         `json:"context_after"`
	Type          CorrectionType `json:"correction_type"`
	UsageCount    int            `json:"usage_count"`
	LastUsed      time.Time      `json:"last_used"`
}

// Confidence returns the derived trust score of the correction.
func (c Correction) Confidence() float64 { return Confidence(c.UsageCount) }

// Confidence maps a usage count to a score in [0, 1]: min(1, count/10).
func Confidence(usageCount int) float64 {
	if usageCount <= 0 {
		return 0
	}
	return min(1.0, float64(usageCount)/10.0)
}

// Term is one row of the derived terminology table.
type Term struct {
	Term      string         `json:"term"`
	Category  CorrectionType `json:"category"`
	Frequency int            `json:"frequency"`
	LastUsed  time.Time      `json:"last_used"`
}

// Suggestion is a correction candidate for one token of an input text.
type Suggestion struct {
	// Position is the zero-based index of the whitespace token.
	Position      int            `json:"position"`
	OriginalWord  string         `json:"original_word"`
	SuggestedWord string         `json:"suggested_word"`
	Confidence    float64        `json:"confidence"`
	Type          CorrectionType `json:"type"`
}

// Stats aggregates counters across the store.
type Stats struct {
	TotalEntries     int     `json:"total_entries"`
	EditedEntries    int     `json:"edited_entries"`
	TotalCorrections int     `json:"total_corrections"`
	TotalTerminology int     `json:"total_terminology"`
	LearningRate     float64 `json:"learning_rate"`
}

// LearningRate returns edited / max(1, total).
func LearningRate(edited, total int) float64 {
	return float64(edited) / float64(max(1, total))
}

// ClampLimit returns limit, or def when limit is not positive.
func ClampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

// Validate rejects observations with blank phrases or an unknown type.
func (o Observation) Validate() error {
	if strings.TrimSpace(o.Original) == "" || strings.TrimSpace(o.Corrected) == "" {
		return fmt.Errorf("%w: original and corrected phrases are required", ErrValidation)
	}
	if !o.Type.IsValid() {
		return fmt.Errorf("%w: unknown correction type %q", ErrValidation, o.Type)
	}
	return nil
}
