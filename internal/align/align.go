// Package align computes word-level alignments between a machine text and its
// human-edited version.
//
// Alignment follows the Ratcliff/Obershelp scheme: find the longest block of
// tokens common to both sequences, then recurse on the unmatched regions to
// the left and right of it. When several blocks share the maximal length the
// one starting earliest in the original sequence wins, then the one starting
// earliest in the corrected sequence. No token is ever treated as junk, so
// the result depends only on token equality and is fully reproducible.
package align

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ContextWidth is the number of original-side tokens captured on each side of
// a replacement.
const ContextWidth = 2

// Kind classifies an edit operation.
type Kind byte

const (
	Equal   Kind = 'e'
	Replace Kind = 'r'
	Insert  Kind = 'i'
	Delete  Kind = 'd'
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Replace:
		return "replace"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Op is one edit operation. I1:I2 is a half-open range into the original
// tokens, J1:J2 into the corrected tokens. Insert ops have I1 == I2, Delete
// ops have J1 == J2.
type Op struct {
	Kind   Kind
	I1, I2 int
	J1, J2 int
}

// Replacement is a Replace op resolved to phrases and original-side context.
type Replacement struct {
	Op            Op
	Original      string
	Corrected     string
	ContextBefore string
	ContextAfter  string
}

// Tokens splits text on Unicode whitespace.
func Tokens(text string) []string {
	return strings.Fields(text)
}

// Align returns the ordered edit operations that turn a into b. The ops cover
// both sequences completely and contiguously. Two empty inputs yield no ops.
func Align(a, b []string) []Op {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	m := difflib.NewMatcherWithJunk(a, b, false, nil)
	codes := m.GetOpCodes()

	ops := make([]Op, 0, len(codes))
	for _, c := range codes {
		ops = append(ops, Op{Kind: Kind(c.Tag), I1: c.I1, I2: c.I2, J1: c.J1, J2: c.J2})
	}
	return ops
}

// Replacements aligns a and b and returns every Replace op with its phrases
// joined by single spaces. Insert and Delete ops carry no
// original→corrected pair and are skipped.
func Replacements(a, b []string) []Replacement {
	var out []Replacement
	for _, op := range Align(a, b) {
		if op.Kind != Replace {
			continue
		}
		out = append(out, Replacement{
			Op:            op,
			Original:      strings.Join(a[op.I1:op.I2], " "),
			Corrected:     strings.Join(b[op.J1:op.J2], " "),
			ContextBefore: strings.Join(a[max(0, op.I1-ContextWidth):op.I1], " "),
			ContextAfter:  strings.Join(a[op.I2:min(len(a), op.I2+ContextWidth)], " "),
		})
	}
	return out
}
