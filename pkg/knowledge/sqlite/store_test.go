package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/glossa/pkg/knowledge"
	"github.com/MrWong99/glossa/pkg/knowledge/sqlite"
)

// tickClock returns a strictly increasing time on every call so that
// created_at and last_used ordering is deterministic.
type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	clock := &tickClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "knowledge.db")
	store, err := sqlite.Open(context.Background(), path, sqlite.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCreate(t *testing.T, s *sqlite.Store, original, processed string) int64 {
	t.Helper()
	id, err := s.CreateEntry(context.Background(), knowledge.NewEntry{
		OriginalText:  original,
		ProcessedText: processed,
		FormatType:    "improve",
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	return id
}

// ─────────────────────────────────────────────────────────────────────────────
// Entries
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateGetRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	meta := map[string]any{"filename": "memo.wav", "duration": 3.5}
	id, err := s.CreateEntry(ctx, knowledge.NewEntry{
		OriginalText:  "das ist ein test",
		ProcessedText: "Das ist ein Test.",
		FormatType:    "ollama_correction",
		Metadata:      meta,
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	got, err := s.GetEntry(ctx, id)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.ID != id {
		t.Errorf("ID: want %d, got %d", id, got.ID)
	}
	if got.OriginalText != "das ist ein test" || got.ProcessedText != "Das ist ein Test." {
		t.Errorf("texts: got %q / %q", got.OriginalText, got.ProcessedText)
	}
	if got.FormatType != "ollama_correction" {
		t.Errorf("FormatType: want ollama_correction, got %q", got.FormatType)
	}
	if got.EditedText != nil {
		t.Errorf("EditedText: want nil, got %q", *got.EditedText)
	}
	if !reflect.DeepEqual(got.Metadata, meta) {
		t.Errorf("Metadata: want %v, got %v", meta, got.Metadata)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt: want non-zero")
	}
}

func TestCreateEntryValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateEntry(ctx, knowledge.NewEntry{OriginalText: "", ProcessedText: "x"})
	if !errors.Is(err, knowledge.ErrValidation) {
		t.Fatalf("CreateEntry: want ErrValidation, got %v", err)
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalEntries != 0 {
		t.Errorf("TotalEntries after rejected create: want 0, got %d", st.TotalEntries)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.GetEntry(context.Background(), 999)
	if !errors.Is(err, knowledge.ErrNotFound) {
		t.Fatalf("GetEntry: want ErrNotFound, got %v", err)
	}
}

func TestListEntriesMostRecentFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	first := mustCreate(t, s, "eins", "Eins")
	second := mustCreate(t, s, "zwei", "Zwei")
	third := mustCreate(t, s, "drei", "Drei")

	got, err := s.ListEntries(ctx, 2)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(got) != 2 || got[0].ID != third || got[1].ID != second {
		t.Fatalf("ListEntries(2): want [%d %d], got %v", third, second, ids(got))
	}

	all, err := s.ListEntries(ctx, 0)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(all) != 3 || all[2].ID != first {
		t.Errorf("ListEntries(0): want 3 entries ending with %d, got %v", first, ids(all))
	}
}

func TestSetEditedText(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	id := mustCreate(t, s, "ich trinke kafe", "Ich trinke kafe.")

	res, err := s.SetEditedText(ctx, id, "Ich trinke Kaffee.")
	if err != nil {
		t.Fatalf("SetEditedText: %v", err)
	}
	if res.ProcessedText != "Ich trinke kafe." {
		t.Errorf("ProcessedText: want %q, got %q", "Ich trinke kafe.", res.ProcessedText)
	}
	if res.Entry.EditedText == nil || *res.Entry.EditedText != "Ich trinke Kaffee." {
		t.Fatalf("Entry.EditedText: got %v", res.Entry.EditedText)
	}

	// Last writer wins.
	if _, err := s.SetEditedText(ctx, id, "Ich trinke gerne Kaffee."); err != nil {
		t.Fatalf("SetEditedText: %v", err)
	}
	got, err := s.GetEntry(ctx, id)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.EditedText == nil || *got.EditedText != "Ich trinke gerne Kaffee." {
		t.Errorf("EditedText: want latest edit, got %v", got.EditedText)
	}
	if got.ProcessedText != "Ich trinke kafe." {
		t.Errorf("ProcessedText must be immutable, got %q", got.ProcessedText)
	}
}

func TestSetEditedTextErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.SetEditedText(ctx, 42, "text"); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("SetEditedText unknown id: want ErrNotFound, got %v", err)
	}
	id := mustCreate(t, s, "a", "b")
	if _, err := s.SetEditedText(ctx, id, "   "); !errors.Is(err, knowledge.ErrValidation) {
		t.Errorf("SetEditedText blank: want ErrValidation, got %v", err)
	}
}

func TestSearchEntriesCaseInsensitive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	a := mustCreate(t, s, "ein Fehler im System", "Ein Fehler im System.")
	mustCreate(t, s, "alles gut", "Alles gut.")
	c := mustCreate(t, s, "keine ahnung", "FEHLERMELDUNG erhalten")
	d := mustCreate(t, s, "die Änderung", "Die Änderung.")

	got, err := s.SearchEntries(ctx, "fehler", 10)
	if err != nil {
		t.Fatalf("SearchEntries: %v", err)
	}
	if len(got) != 2 || got[0].ID != c || got[1].ID != a {
		t.Errorf("SearchEntries(fehler): want [%d %d], got %v", c, a, ids(got))
	}

	got, err = s.SearchEntries(ctx, "änderung", 10)
	if err != nil {
		t.Fatalf("SearchEntries: %v", err)
	}
	if len(got) != 1 || got[0].ID != d {
		t.Errorf("SearchEntries(änderung): want [%d], got %v", d, ids(got))
	}

	got, err = s.SearchEntries(ctx, "fehler", 1)
	if err != nil {
		t.Fatalf("SearchEntries: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("SearchEntries limit 1: want 1 result, got %d", len(got))
	}

	got, err = s.SearchEntries(ctx, "  ", 10)
	if err != nil {
		t.Fatalf("SearchEntries blank: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("SearchEntries blank: want empty non-nil slice, got %v", got)
	}
}

func TestSearchEntriesTreatsWildcardsLiterally(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	mustCreate(t, s, "100% sicher", "100% sicher")
	mustCreate(t, s, "1000 sicher", "1000 sicher")

	got, err := s.SearchEntries(ctx, "0%", 10)
	if err != nil {
		t.Fatalf("SearchEntries: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("SearchEntries(0%%): want 1 result, got %d", len(got))
	}
}

func TestDeleteEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	id := mustCreate(t, s, "weg damit", "Weg damit.")
	if err := s.DeleteEntry(ctx, id); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if _, err := s.GetEntry(ctx, id); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("GetEntry after delete: want ErrNotFound, got %v", err)
	}
	if err := s.DeleteEntry(ctx, id); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("DeleteEntry twice: want ErrNotFound, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Ledger
// ─────────────────────────────────────────────────────────────────────────────

func TestRecordCorrectionCountsRepeats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	const n = 5
	for i := range n {
		obs := knowledge.Observation{
			Original:      "Enviroment",
			Corrected:     "Environment",
			ContextBefore: "the",
			ContextAfter:  "variable",
			Type:          knowledge.Mishearing,
		}
		if i > 0 {
			obs.ContextBefore, obs.ContextAfter = "other", "context"
		}
		if err := s.RecordCorrection(ctx, obs); err != nil {
			t.Fatalf("RecordCorrection #%d: %v", i, err)
		}
	}

	all, err := s.ListCorrections(ctx, 0)
	if err != nil {
		t.Fatalf("ListCorrections: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("ListCorrections: want 1 row, got %d", len(all))
	}
	c := all[0]
	if c.UsageCount != n {
		t.Errorf("UsageCount: want %d, got %d", n, c.UsageCount)
	}
	if c.ContextBefore != "the" || c.ContextAfter != "variable" {
		t.Errorf("context must keep first observation, got %q/%q", c.ContextBefore, c.ContextAfter)
	}
	if c.Confidence() != 0.5 {
		t.Errorf("Confidence: want 0.5, got %v", c.Confidence())
	}

	terms, err := s.ListTerminology(ctx, 0)
	if err != nil {
		t.Fatalf("ListTerminology: %v", err)
	}
	if len(terms) != 0 {
		t.Errorf("mishearing must not feed terminology, got %v", terms)
	}
}

func TestRecordCorrectionFeedsTerminology(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	record := func(orig, corr string, typ knowledge.CorrectionType) {
		t.Helper()
		if err := s.RecordCorrection(ctx, knowledge.Observation{Original: orig, Corrected: corr, Type: typ}); err != nil {
			t.Fatalf("RecordCorrection(%q, %q): %v", orig, corr, err)
		}
	}

	record("kafe", "Kaffee", knowledge.ProperName)
	terms, err := s.ListTerminology(ctx, 0)
	if err != nil {
		t.Fatalf("ListTerminology: %v", err)
	}
	if len(terms) != 1 || terms[0].Term != "Kaffee" || terms[0].Frequency != 1 || terms[0].Category != knowledge.ProperName {
		t.Fatalf("ListTerminology: want [Kaffee/proper_name/1], got %+v", terms)
	}

	// A different correction producing the same term bumps its frequency.
	record("kaffe", "Kaffee", knowledge.ProperName)
	record("Gateway", "Schnittstelle", knowledge.Terminology)
	record("schnell", "Schnell", knowledge.Capitalization)

	terms, err = s.ListTerminology(ctx, 0)
	if err != nil {
		t.Fatalf("ListTerminology: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("ListTerminology: want 2 terms, got %+v", terms)
	}
	if terms[0].Term != "Kaffee" || terms[0].Frequency != 2 {
		t.Errorf("terms[0]: want Kaffee/2, got %s/%d", terms[0].Term, terms[0].Frequency)
	}
	if terms[1].Term != "Schnittstelle" || terms[1].Category != knowledge.Terminology {
		t.Errorf("terms[1]: want Schnittstelle/terminology, got %s/%s", terms[1].Term, terms[1].Category)
	}

	if err := s.RecordTerminology(ctx, "Schnittstelle", knowledge.Terminology); err != nil {
		t.Fatalf("RecordTerminology: %v", err)
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalTerminology != 2 || st.TotalCorrections != 4 {
		t.Errorf("Stats: want 4 corrections / 2 terms, got %d / %d", st.TotalCorrections, st.TotalTerminology)
	}
}

func TestRecordCorrectionValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	bad := []knowledge.Observation{
		{Original: "", Corrected: "x", Type: knowledge.Grammar},
		{Original: "x", Corrected: "y", Type: "spelling"},
	}
	for _, obs := range bad {
		if err := s.RecordCorrection(ctx, obs); !errors.Is(err, knowledge.ErrValidation) {
			t.Errorf("RecordCorrection(%+v): want ErrValidation, got %v", obs, err)
		}
	}
	if err := s.RecordTerminology(ctx, " ", knowledge.ProperName); !errors.Is(err, knowledge.ErrValidation) {
		t.Errorf("RecordTerminology blank: want ErrValidation, got %v", err)
	}
}

func TestCorrectionsForOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	record := func(corr string, times int) {
		t.Helper()
		for range times {
			if err := s.RecordCorrection(ctx, knowledge.Observation{Original: "test", Corrected: corr, Type: knowledge.Grammar}); err != nil {
				t.Fatalf("RecordCorrection: %v", err)
			}
		}
	}
	record("Test", 5)
	record("Versuch", 2)
	record("Probe", 2) // same count as Versuch but used more recently
	record("Prüfung", 1)
	record("TEST", 1)

	got, err := s.CorrectionsFor(ctx, "test", 3)
	if err != nil {
		t.Fatalf("CorrectionsFor: %v", err)
	}
	want := []string{"Test", "Probe", "Versuch"}
	if len(got) != len(want) {
		t.Fatalf("CorrectionsFor: want %d, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Corrected != w {
			t.Errorf("CorrectionsFor[%d]: want %s, got %s", i, w, got[i].Corrected)
		}
	}

	// Exact, case-sensitive key match.
	got, err = s.CorrectionsFor(ctx, "Test", 3)
	if err != nil {
		t.Fatalf("CorrectionsFor: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("CorrectionsFor(Test): want none, got %d", len(got))
	}
}

func TestRecordCorrectionConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RecordCorrection(ctx, knowledge.Observation{Original: "kafe", Corrected: "Kaffee", Type: knowledge.ProperName})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RecordCorrection: %v", err)
		}
	}

	got, err := s.CorrectionsFor(ctx, "kafe", 1)
	if err != nil {
		t.Fatalf("CorrectionsFor: %v", err)
	}
	if len(got) != 1 || got[0].UsageCount != workers {
		t.Fatalf("UsageCount: want %d, got %+v", workers, got)
	}
	terms, err := s.ListTerminology(ctx, 1)
	if err != nil {
		t.Fatalf("ListTerminology: %v", err)
	}
	if terms[0].Frequency != workers {
		t.Errorf("Frequency: want %d, got %d", workers, terms[0].Frequency)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st != (knowledge.Stats{}) {
		t.Errorf("Stats on empty store: want zero value, got %+v", st)
	}

	a := mustCreate(t, s, "a", "A")
	mustCreate(t, s, "b", "B")
	mustCreate(t, s, "c", "C")
	mustCreate(t, s, "d", "D")
	if _, err := s.SetEditedText(ctx, a, "AA"); err != nil {
		t.Fatalf("SetEditedText: %v", err)
	}

	st, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalEntries != 4 || st.EditedEntries != 1 {
		t.Errorf("Stats: want 4 total / 1 edited, got %d / %d", st.TotalEntries, st.EditedEntries)
	}
	if st.LearningRate != 0.25 {
		t.Errorf("LearningRate: want 0.25, got %v", st.LearningRate)
	}
}

func ids(entries []knowledge.Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
