// Package phonetic proposes learned terminology for words that sound like,
// or are spelled close to, a known term.
//
// Matching runs in two stages:
//
//  1. Phonetic filter: Double Metaphone codes of the word and of every term
//     token are compared. Any shared code makes the term a phonetic
//     candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates the term with the best
//     case-insensitive Jaro-Winkler score wins if it reaches the phonetic
//     threshold. Without a phonetic candidate, a term is still accepted when
//     its plain Jaro-Winkler score reaches the higher fuzzy threshold.
//
// Multi-word terms ("Hallo Welt GmbH") are scored with the best of the full
// string, the space-stripped string and any token pair.
package phonetic

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// defaultMinWordLength skips short function words such as "der" or "im",
	// whose metaphone codes collide with almost everything.
	defaultMinWordLength = 4
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically matched term. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// WithMinWordLength sets the shortest word (in runes) [Matcher.Hints]
// considers. Default: 4.
func WithMinWordLength(n int) Option {
	return func(m *Matcher) {
		m.minWordLength = n
	}
}

// Matcher matches words against a term list. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	minWordLength     int
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		minWordLength:     defaultMinWordLength,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Hint proposes a known term for one token of a text.
type Hint struct {
	// Position is the zero-based whitespace token index.
	Position int     `json:"position"`
	Word     string  `json:"word"`
	Term     string  `json:"term"`
	Score    float64 `json:"score"`

	// Phonetic is true when the term shares a metaphone code with the word.
	Phonetic bool `json:"phonetic"`
}

// Hints returns a hint for every token of text that matches one of terms
// without already being spelled exactly like it. skip, when non-nil,
// excludes further tokens (for example words the ledger already corrects).
// Hints are ordered by position.
func (m *Matcher) Hints(text string, terms []string, skip func(word string) bool) []Hint {
	hints := []Hint{}
	if len(terms) == 0 {
		return hints
	}
	known := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		known[t] = struct{}{}
	}

	for pos, tok := range strings.Fields(text) {
		word := strings.Trim(tok, ".,;:!?\"'()[]")
		if utf8.RuneCountInString(word) < m.minWordLength {
			continue
		}
		if _, ok := known[word]; ok {
			continue
		}
		if skip != nil && skip(tok) {
			continue
		}
		c := m.best(word, terms)
		if c.term == "" {
			continue
		}
		hints = append(hints, Hint{
			Position: pos,
			Word:     tok,
			Term:     c.term,
			Score:    c.score,
			Phonetic: c.phonetic,
		})
	}
	return hints
}

// Match finds the term most similar to word. When matched is false,
// corrected equals word unchanged and confidence is 0.
func (m *Matcher) Match(word string, terms []string) (corrected string, confidence float64, matched bool) {
	if len(terms) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}
	c := m.best(word, terms)
	if c.term == "" {
		return word, 0, false
	}
	return c.term, c.score, true
}

type candidate struct {
	term     string
	score    float64
	phonetic bool
}

func (m *Matcher) best(word string, terms []string) candidate {
	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	var best candidate
	for _, term := range terms {
		termLower := strings.ToLower(strings.TrimSpace(term))
		if termLower == "" {
			continue
		}
		termTokens := strings.Fields(termLower)

		phoneticMatch := codesOverlap(inputCodes, codesForTokens(termTokens))
		score := bestJWScore(wordTokens, termTokens, wordLower, termLower)

		// A phonetic candidate always beats a purely fuzzy one.
		switch {
		case phoneticMatch && score >= m.phoneticThreshold:
			if !best.phonetic || score > best.score {
				best = candidate{term: term, score: score, phonetic: true}
			}
		case !phoneticMatch && !best.phonetic:
			if score >= m.fuzzyThreshold && score > best.score {
				best = candidate{term: term, score: score}
			}
		}
	}
	return best
}

// codesForTokens returns the union of the Double Metaphone codes of tokens,
// excluding empty codes.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity of the full strings,
// the space-stripped strings and any token pair.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(termTokens, ""), false)
		score = max(score, s)
	}

	for _, it := range inputTokens {
		for _, tt := range termTokens {
			score = max(score, matchr.JaroWinkler(it, tt, false))
		}
	}
	return score
}
