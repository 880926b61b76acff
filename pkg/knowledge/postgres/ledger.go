package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/glossa/pkg/knowledge"
)

const (
	upsertCorrectionSQL = `
		INSERT INTO corrections
		    (original_word, corrected_word, context_before, context_after, correction_type, usage_count, last_used)
		VALUES ($1, $2, $3, $4, $5, 1, $6)
		ON CONFLICT (original_word, corrected_word) DO UPDATE SET
		    usage_count = corrections.usage_count + 1,
		    last_used   = EXCLUDED.last_used`

	upsertTermSQL = `
		INSERT INTO terminology (term, category, frequency, last_used)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (term) DO UPDATE SET
		    frequency = terminology.frequency + 1,
		    last_used = EXCLUDED.last_used`

	correctionColumns = `id, original_word, corrected_word, context_before, context_after, correction_type, usage_count, last_used`
)

// RecordCorrection implements [knowledge.Ledger].
func (s *Store) RecordCorrection(ctx context.Context, obs knowledge.Observation) error {
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("postgres: record correction: %w", err)
	}

	now := s.stamp()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertCorrectionSQL,
			obs.Original, obs.Corrected, obs.ContextBefore, obs.ContextAfter, string(obs.Type), now,
		); err != nil {
			return err
		}
		if obs.Type.FeedsTerminology() {
			if _, err := tx.Exec(ctx, upsertTermSQL, obs.Corrected, string(obs.Type), now); err != nil {
				return fmt.Errorf("terminology: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return persistErr("record correction", err)
	}
	return nil
}

// RecordTerminology implements [knowledge.Ledger].
func (s *Store) RecordTerminology(ctx context.Context, term string, category knowledge.CorrectionType) error {
	if strings.TrimSpace(term) == "" {
		return fmt.Errorf("postgres: record terminology: %w: term is empty", knowledge.ErrValidation)
	}
	if _, err := s.pool.Exec(ctx, upsertTermSQL, term, string(category), s.stamp()); err != nil {
		return persistErr("record terminology", err)
	}
	return nil
}

// CorrectionsFor implements [knowledge.Ledger].
func (s *Store) CorrectionsFor(ctx context.Context, original string, limit int) ([]knowledge.Correction, error) {
	limit = knowledge.ClampLimit(limit, knowledge.SuggestionsPerToken)
	q := `
		SELECT ` + correctionColumns + `
		FROM   corrections
		WHERE  original_word = $1
		ORDER  BY usage_count DESC, last_used DESC, id ASC
		LIMIT  $2`
	return s.collectCorrections(ctx, "corrections for", q, original, limit)
}

// ListCorrections implements [knowledge.Ledger].
func (s *Store) ListCorrections(ctx context.Context, limit int) ([]knowledge.Correction, error) {
	limit = knowledge.ClampLimit(limit, knowledge.DefaultListLimit)
	q := `
		SELECT ` + correctionColumns + `
		FROM   corrections
		ORDER  BY usage_count DESC, last_used DESC, id ASC
		LIMIT  $1`
	return s.collectCorrections(ctx, "list corrections", q, limit)
}

// ListTerminology implements [knowledge.Ledger].
func (s *Store) ListTerminology(ctx context.Context, limit int) ([]knowledge.Term, error) {
	limit = knowledge.ClampLimit(limit, knowledge.DefaultListLimit)
	const q = `
		SELECT term, category, frequency, last_used
		FROM   terminology
		ORDER  BY frequency DESC, term ASC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, persistErr("list terminology", err)
	}
	terms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (knowledge.Term, error) {
		var (
			t        knowledge.Term
			category string
			lastUsed time.Time
		)
		if err := row.Scan(&t.Term, &category, &t.Frequency, &lastUsed); err != nil {
			return knowledge.Term{}, err
		}
		t.Category = knowledge.CorrectionType(category)
		t.LastUsed = lastUsed.UTC()
		return t, nil
	})
	if err != nil {
		return nil, persistErr("list terminology", err)
	}
	if terms == nil {
		terms = []knowledge.Term{}
	}
	return terms, nil
}

func (s *Store) collectCorrections(ctx context.Context, op, q string, args ...any) ([]knowledge.Correction, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (knowledge.Correction, error) {
		var (
			c   knowledge.Correction
			typ string
		)
		if err := row.Scan(&c.ID, &c.Original, &c.Corrected, &c.ContextBefore, &c.ContextAfter, &typ, &c.UsageCount, &c.LastUsed); err != nil {
			return knowledge.Correction{}, err
		}
		c.Type = knowledge.CorrectionType(typ)
		c.LastUsed = c.LastUsed.UTC()
		return c, nil
	})
	if err != nil {
		return nil, persistErr(op, err)
	}
	if out == nil {
		out = []knowledge.Correction{}
	}
	return out, nil
}
