package knowledge_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/glossa/pkg/knowledge"
)

func TestConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		count int
		want  float64
	}{
		{0, 0},
		{1, 0.1},
		{5, 0.5},
		{10, 1},
		{42, 1},
	}
	for _, tc := range tests {
		if got := knowledge.Confidence(tc.count); got != tc.want {
			t.Errorf("Confidence(%d): want %v, got %v", tc.count, tc.want, got)
		}
	}
}

func TestLearningRate(t *testing.T) {
	t.Parallel()

	if got := knowledge.LearningRate(0, 0); got != 0 {
		t.Errorf("LearningRate(0, 0): want 0, got %v", got)
	}
	if got := knowledge.LearningRate(1, 4); got != 0.25 {
		t.Errorf("LearningRate(1, 4): want 0.25, got %v", got)
	}
}

func TestNewEntryValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entry   knowledge.NewEntry
		wantErr bool
	}{
		{"ok", knowledge.NewEntry{OriginalText: "a", ProcessedText: "b"}, false},
		{"blank original", knowledge.NewEntry{OriginalText: "  ", ProcessedText: "b"}, true},
		{"empty processed", knowledge.NewEntry{OriginalText: "a"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.entry.Validate()
			if tc.wantErr && !errors.Is(err, knowledge.ErrValidation) {
				t.Fatalf("Validate: want ErrValidation, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate: unexpected error: %v", err)
			}
		})
	}
}

func TestCorrectionTypeFeedsTerminology(t *testing.T) {
	t.Parallel()

	feeds := map[knowledge.CorrectionType]bool{
		knowledge.ProperName:     true,
		knowledge.Terminology:    true,
		knowledge.Capitalization: false,
		knowledge.Mishearing:     false,
		knowledge.Grammar:        false,
	}
	for typ, want := range feeds {
		if !typ.IsValid() {
			t.Errorf("%s.IsValid: want true", typ)
		}
		if got := typ.FeedsTerminology(); got != want {
			t.Errorf("%s.FeedsTerminology: want %v, got %v", typ, want, got)
		}
	}
	if knowledge.CorrectionType("spelling").IsValid() {
		t.Error("spelling.IsValid: want false")
	}
}
