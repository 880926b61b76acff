// Package classify labels a learned substitution with a correction category.
package classify

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/MrWong99/glossa/pkg/knowledge"
)

const (
	// MinSimilarityLength is the rune count both phrases must exceed before
	// the similarity test applies.
	MinSimilarityLength = 3

	// MishearingRatio is the similarity above which a substitution counts as
	// a mishearing instead of a terminology swap.
	MishearingRatio = 0.7
)

// Classify returns the category of the substitution original→corrected. The
// rules are evaluated in priority order:
//
//  1. the phrases differ only in case: capitalization
//  2. corrected starts upper case and original does not: proper name
//  3. corrected is a single title-case token replacing a phrase that was
//     not already title case: proper name
//  4. both longer than three runes: mishearing when the lowercase
//     similarity exceeds 0.7, terminology otherwise
//  5. grammar
//
// A case-only edit such as schnell→Schnell is therefore a capitalization fix,
// and Enviroment→Environment reaches the similarity test.
func Classify(original, corrected string) knowledge.CorrectionType {
	lo, lc := strings.ToLower(original), strings.ToLower(corrected)
	if lo == lc {
		return knowledge.Capitalization
	}
	if startsUpper(corrected) && !startsUpper(original) {
		return knowledge.ProperName
	}
	if fields := strings.Fields(corrected); len(fields) == 1 && isTitle(fields[0]) && !isTitle(original) {
		return knowledge.ProperName
	}
	if utf8.RuneCountInString(original) > MinSimilarityLength && utf8.RuneCountInString(corrected) > MinSimilarityLength {
		if Ratio(lo, lc) > MishearingRatio {
			return knowledge.Mishearing
		}
		return knowledge.Terminology
	}
	return knowledge.Grammar
}

// Ratio returns 2*M/T where M is the number of runes in the matching blocks
// of a and b and T is the total rune count. Two empty strings are identical.
func Ratio(a, b string) float64 {
	ra, rb := runeStrings(a), runeStrings(b)
	if len(ra)+len(rb) == 0 {
		return 1
	}
	return difflib.NewMatcherWithJunk(ra, rb, false, nil).Ratio()
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

// isTitle reports whether the cased letters of word form title case: every
// letter run starts upper case and continues lower case, and at least one
// cased letter is present.
func isTitle(word string) bool {
	cased := false
	prevCased := false
	for _, r := range word {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if prevCased {
				return false
			}
			prevCased, cased = true, true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased, cased = true, true
		default:
			prevCased = false
		}
	}
	return cased
}
