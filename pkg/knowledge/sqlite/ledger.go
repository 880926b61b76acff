package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/glossa/pkg/knowledge"
)

const (
	upsertCorrectionSQL = `
		INSERT INTO corrections
			(original_word, corrected_word, context_before, context_after, correction_type, usage_count, last_used)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (original_word, corrected_word) DO UPDATE SET
			usage_count = usage_count + 1,
			last_used   = excluded.last_used`

	upsertTermSQL = `
		INSERT INTO terminology (term, category, frequency, last_used)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (term) DO UPDATE SET
			frequency = frequency + 1,
			last_used = excluded.last_used`

	correctionColumns = `id, original_word, corrected_word, context_before, context_after, correction_type, usage_count, last_used`
)

// RecordCorrection implements [knowledge.Ledger].
func (s *Store) RecordCorrection(ctx context.Context, obs knowledge.Observation) error {
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("sqlite: record correction: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("record correction: begin", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := s.stamp()
	if _, err := tx.ExecContext(ctx, upsertCorrectionSQL,
		obs.Original, obs.Corrected, obs.ContextBefore, obs.ContextAfter, string(obs.Type), now,
	); err != nil {
		return persistErr("record correction", err)
	}
	if obs.Type.FeedsTerminology() {
		if _, err := tx.ExecContext(ctx, upsertTermSQL, obs.Corrected, string(obs.Type), now); err != nil {
			return persistErr("record correction: terminology", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return persistErr("record correction: commit", err)
	}
	return nil
}

// RecordTerminology implements [knowledge.Ledger].
func (s *Store) RecordTerminology(ctx context.Context, term string, category knowledge.CorrectionType) error {
	if strings.TrimSpace(term) == "" {
		return fmt.Errorf("sqlite: record terminology: %w: term is empty", knowledge.ErrValidation)
	}
	if _, err := s.db.ExecContext(ctx, upsertTermSQL, term, string(category), s.stamp()); err != nil {
		return persistErr("record terminology", err)
	}
	return nil
}

// CorrectionsFor implements [knowledge.Ledger].
func (s *Store) CorrectionsFor(ctx context.Context, original string, limit int) ([]knowledge.Correction, error) {
	limit = knowledge.ClampLimit(limit, knowledge.SuggestionsPerToken)
	q := `
		SELECT ` + correctionColumns + `
		FROM corrections
		WHERE original_word = ?
		ORDER BY usage_count DESC, last_used DESC, id ASC
		LIMIT ?`
	return s.queryCorrections(ctx, "corrections for", q, original, limit)
}

// ListCorrections implements [knowledge.Ledger].
func (s *Store) ListCorrections(ctx context.Context, limit int) ([]knowledge.Correction, error) {
	limit = knowledge.ClampLimit(limit, knowledge.DefaultListLimit)
	q := `
		SELECT ` + correctionColumns + `
		FROM corrections
		ORDER BY usage_count DESC, last_used DESC, id ASC
		LIMIT ?`
	return s.queryCorrections(ctx, "list corrections", q, limit)
}

// ListTerminology implements [knowledge.Ledger].
func (s *Store) ListTerminology(ctx context.Context, limit int) ([]knowledge.Term, error) {
	limit = knowledge.ClampLimit(limit, knowledge.DefaultListLimit)
	const q = `
		SELECT term, category, frequency, last_used
		FROM terminology
		ORDER BY frequency DESC, term ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, persistErr("list terminology", err)
	}
	defer rows.Close()

	terms := []knowledge.Term{}
	for rows.Next() {
		var (
			t        knowledge.Term
			category string
			lastUsed int64
		)
		if err := rows.Scan(&t.Term, &category, &t.Frequency, &lastUsed); err != nil {
			return nil, persistErr("list terminology", err)
		}
		t.Category = knowledge.CorrectionType(category)
		t.LastUsed = fromStamp(lastUsed)
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list terminology", err)
	}
	return terms, nil
}

func (s *Store) queryCorrections(ctx context.Context, op, q string, args ...any) ([]knowledge.Correction, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	out := []knowledge.Correction{}
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, persistErr(op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return out, nil
}

func scanCorrection(r rowScanner) (knowledge.Correction, error) {
	var (
		c        knowledge.Correction
		typ      string
		lastUsed int64
	)
	err := r.Scan(&c.ID, &c.Original, &c.Corrected, &c.ContextBefore, &c.ContextAfter, &typ, &c.UsageCount, &lastUsed)
	if err != nil {
		return knowledge.Correction{}, err
	}
	c.Type = knowledge.CorrectionType(typ)
	c.LastUsed = fromStamp(lastUsed)
	return c, nil
}
