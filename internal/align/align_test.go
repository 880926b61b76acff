package align_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/glossa/internal/align"
)

func TestAlign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want []align.Op
	}{
		{
			name: "identical",
			a:    "guten morgen",
			b:    "guten morgen",
			want: []align.Op{{Kind: align.Equal, I1: 0, I2: 2, J1: 0, J2: 2}},
		},
		{
			name: "single replace at end",
			a:    "das ist ein test",
			b:    "das ist ein Test",
			want: []align.Op{
				{Kind: align.Equal, I1: 0, I2: 3, J1: 0, J2: 3},
				{Kind: align.Replace, I1: 3, I2: 4, J1: 3, J2: 4},
			},
		},
		{
			name: "insert",
			a:    "a c",
			b:    "a b c",
			want: []align.Op{
				{Kind: align.Equal, I1: 0, I2: 1, J1: 0, J2: 1},
				{Kind: align.Insert, I1: 1, I2: 1, J1: 1, J2: 2},
				{Kind: align.Equal, I1: 1, I2: 2, J1: 2, J2: 3},
			},
		},
		{
			name: "delete",
			a:    "a b c",
			b:    "a c",
			want: []align.Op{
				{Kind: align.Equal, I1: 0, I2: 1, J1: 0, J2: 1},
				{Kind: align.Delete, I1: 1, I2: 2, J1: 1, J2: 1},
				{Kind: align.Equal, I1: 2, I2: 3, J1: 1, J2: 2},
			},
		},
		{
			name: "swap prefers earliest block in original",
			a:    "x y",
			b:    "y x",
			want: []align.Op{
				{Kind: align.Insert, I1: 0, I2: 0, J1: 0, J2: 1},
				{Kind: align.Equal, I1: 0, I2: 1, J1: 1, J2: 2},
				{Kind: align.Delete, I1: 1, I2: 2, J1: 2, J2: 2},
			},
		},
		{
			name: "both empty",
			a:    "",
			b:    "",
			want: nil,
		},
		{
			name: "empty original",
			a:    "",
			b:    "neu",
			want: []align.Op{{Kind: align.Insert, I1: 0, I2: 0, J1: 0, J2: 1}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := align.Align(align.Tokens(tc.a), align.Tokens(tc.b))
			if !slices.Equal(got, tc.want) {
				t.Errorf("Align(%q, %q): want %v, got %v", tc.a, tc.b, tc.want, got)
			}
		})
	}
}

func TestAlignCoversBothSequences(t *testing.T) {
	t.Parallel()

	a := align.Tokens("der schnelle braune fuchs springt über den faulen hund")
	b := align.Tokens("Der schnelle rote Fuchs sprang über den hund heute")

	ops := align.Align(a, b)
	i, j := 0, 0
	for _, op := range ops {
		if op.I1 != i || op.J1 != j {
			t.Fatalf("op %v: want start (%d, %d)", op, i, j)
		}
		i, j = op.I2, op.J2
	}
	if i != len(a) || j != len(b) {
		t.Errorf("Align: want end (%d, %d), got (%d, %d)", len(a), len(b), i, j)
	}
}

func TestAlignDeterministic(t *testing.T) {
	t.Parallel()

	a := align.Tokens("a b a b a b c")
	b := align.Tokens("b a b a c a b")

	first := align.Align(a, b)
	for range 20 {
		if got := align.Align(a, b); !slices.Equal(got, first) {
			t.Fatalf("Align: result changed between runs: %v vs %v", first, got)
		}
	}
}

func TestReplacements(t *testing.T) {
	t.Parallel()

	a := align.Tokens("ich trinke gerne kafe am morgen")
	b := align.Tokens("ich trinke gerne Kaffee am morgen")

	reps := align.Replacements(a, b)
	if len(reps) != 1 {
		t.Fatalf("Replacements: want 1, got %d (%v)", len(reps), reps)
	}
	r := reps[0]
	if r.Original != "kafe" || r.Corrected != "Kaffee" {
		t.Errorf("Replacements: want kafe→Kaffee, got %q→%q", r.Original, r.Corrected)
	}
	if r.ContextBefore != "trinke gerne" {
		t.Errorf("ContextBefore: want %q, got %q", "trinke gerne", r.ContextBefore)
	}
	if r.ContextAfter != "am morgen" {
		t.Errorf("ContextAfter: want %q, got %q", "am morgen", r.ContextAfter)
	}
}

func TestReplacementsMultiWordAndEdges(t *testing.T) {
	t.Parallel()

	a := align.Tokens("the quick brown fox")
	b := align.Tokens("the slow red fox")

	reps := align.Replacements(a, b)
	if len(reps) != 1 {
		t.Fatalf("Replacements: want 1, got %d", len(reps))
	}
	if reps[0].Original != "quick brown" || reps[0].Corrected != "slow red" {
		t.Errorf("Replacements: want %q→%q, got %q→%q", "quick brown", "slow red", reps[0].Original, reps[0].Corrected)
	}
	if reps[0].ContextBefore != "the" || reps[0].ContextAfter != "fox" {
		t.Errorf("context: want the/fox, got %q/%q", reps[0].ContextBefore, reps[0].ContextAfter)
	}

	if got := align.Replacements(align.Tokens("a b"), align.Tokens("a b c")); len(got) != 0 {
		t.Errorf("Replacements on pure insert: want none, got %v", got)
	}
}
