package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/glossa/pkg/knowledge"
)

const entryColumns = `id, created_at, original_text, processed_text, edited_text, format_type, metadata`

// CreateEntry implements [knowledge.EntryStore].
func (s *Store) CreateEntry(ctx context.Context, e knowledge.NewEntry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("postgres: create entry: %w", err)
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	const q = `
		INSERT INTO entries (created_at, original_text, processed_text, format_type, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id int64
	if err := s.pool.QueryRow(ctx, q, s.stamp(), e.OriginalText, e.ProcessedText, e.FormatType, meta).Scan(&id); err != nil {
		return 0, persistErr("create entry", err)
	}
	return id, nil
}

// GetEntry implements [knowledge.EntryStore].
func (s *Store) GetEntry(ctx context.Context, id int64) (knowledge.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM entries WHERE id = $1`
	e, err := scanEntry(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return knowledge.Entry{}, fmt.Errorf("postgres: get entry %d: %w", id, knowledge.ErrNotFound)
	}
	if err != nil {
		return knowledge.Entry{}, persistErr(fmt.Sprintf("get entry %d", id), err)
	}
	return e, nil
}

// ListEntries implements [knowledge.EntryStore].
func (s *Store) ListEntries(ctx context.Context, limit int) ([]knowledge.Entry, error) {
	limit = knowledge.ClampLimit(limit, knowledge.DefaultListLimit)
	q := `SELECT ` + entryColumns + ` FROM entries ORDER BY created_at DESC, id DESC LIMIT $1`
	return s.collectEntries(ctx, "list entries", q, limit)
}

// SetEditedText implements [knowledge.EntryStore]. The write and the read of
// processed_text happen in one UPDATE … RETURNING statement.
func (s *Store) SetEditedText(ctx context.Context, id int64, edited string) (knowledge.EditResult, error) {
	if strings.TrimSpace(edited) == "" {
		return knowledge.EditResult{}, fmt.Errorf("postgres: set edited text %d: %w: edited text is empty", id, knowledge.ErrValidation)
	}

	q := `UPDATE entries SET edited_text = $1 WHERE id = $2 RETURNING ` + entryColumns
	e, err := scanEntry(s.pool.QueryRow(ctx, q, edited, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return knowledge.EditResult{}, fmt.Errorf("postgres: set edited text %d: %w", id, knowledge.ErrNotFound)
	}
	if err != nil {
		return knowledge.EditResult{}, persistErr(fmt.Sprintf("set edited text %d", id), err)
	}
	return knowledge.EditResult{Entry: e, ProcessedText: e.ProcessedText}, nil
}

// SearchEntries implements [knowledge.EntryStore].
func (s *Store) SearchEntries(ctx context.Context, query string, limit int) ([]knowledge.Entry, error) {
	if strings.TrimSpace(query) == "" {
		return []knowledge.Entry{}, nil
	}
	limit = knowledge.ClampLimit(limit, knowledge.DefaultListLimit)

	q := `
		SELECT ` + entryColumns + `
		FROM   entries
		WHERE  strpos(lower(original_text), lower($1)) > 0
		   OR  strpos(lower(processed_text), lower($1)) > 0
		ORDER  BY created_at DESC, id DESC
		LIMIT  $2`
	return s.collectEntries(ctx, "search entries", q, query, limit)
}

// DeleteEntry implements [knowledge.EntryStore].
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return persistErr(fmt.Sprintf("delete entry %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete entry %d: %w", id, knowledge.ErrNotFound)
	}
	return nil
}

func (s *Store) collectEntries(ctx context.Context, op, q string, args ...any) ([]knowledge.Entry, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (knowledge.Entry, error) {
		return scanEntry(row)
	})
	if err != nil {
		return nil, persistErr(op, err)
	}
	if entries == nil {
		entries = []knowledge.Entry{}
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (knowledge.Entry, error) {
	var e knowledge.Entry
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.OriginalText, &e.ProcessedText, &e.EditedText, &e.FormatType, &e.Metadata); err != nil {
		return knowledge.Entry{}, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	return e, nil
}
