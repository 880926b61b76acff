package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/glossa/pkg/knowledge"
)

const entryColumns = `id, created_at, original_text, processed_text, edited_text, format_type, metadata`

// CreateEntry implements [knowledge.EntryStore].
func (s *Store) CreateEntry(ctx context.Context, e knowledge.NewEntry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("sqlite: create entry: %w", err)
	}
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return 0, fmt.Errorf("sqlite: create entry: %w", err)
	}

	const q = `
		INSERT INTO entries (created_at, original_text, processed_text, format_type, metadata)
		VALUES (?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, q, s.stamp(), e.OriginalText, e.ProcessedText, e.FormatType, meta)
	if err != nil {
		return 0, persistErr("create entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, persistErr("create entry: last insert id", err)
	}
	return id, nil
}

// GetEntry implements [knowledge.EntryStore].
func (s *Store) GetEntry(ctx context.Context, id int64) (knowledge.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM entries WHERE id = ?`
	e, err := scanEntry(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return knowledge.Entry{}, fmt.Errorf("sqlite: get entry %d: %w", id, knowledge.ErrNotFound)
	}
	if err != nil {
		return knowledge.Entry{}, persistErr(fmt.Sprintf("get entry %d", id), err)
	}
	return e, nil
}

// ListEntries implements [knowledge.EntryStore].
func (s *Store) ListEntries(ctx context.Context, limit int) ([]knowledge.Entry, error) {
	limit = knowledge.ClampLimit(limit, knowledge.DefaultListLimit)
	q := `SELECT ` + entryColumns + ` FROM entries ORDER BY created_at DESC, id DESC LIMIT ?`
	return s.queryEntries(ctx, "list entries", q, limit)
}

// SetEditedText implements [knowledge.EntryStore]. The write and the read of
// processed_text are a single UPDATE … RETURNING statement.
func (s *Store) SetEditedText(ctx context.Context, id int64, edited string) (knowledge.EditResult, error) {
	if strings.TrimSpace(edited) == "" {
		return knowledge.EditResult{}, fmt.Errorf("sqlite: set edited text %d: %w: edited text is empty", id, knowledge.ErrValidation)
	}

	q := `UPDATE entries SET edited_text = ? WHERE id = ? RETURNING ` + entryColumns
	e, err := scanEntry(s.db.QueryRowContext(ctx, q, edited, id))
	if errors.Is(err, sql.ErrNoRows) {
		return knowledge.EditResult{}, fmt.Errorf("sqlite: set edited text %d: %w", id, knowledge.ErrNotFound)
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
	needle := strings.ToLower(query)

	q := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE instr(fold(original_text), ?) > 0 OR instr(fold(processed_text), ?) > 0
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	return s.queryEntries(ctx, "search entries", q, needle, needle, limit)
}

// DeleteEntry implements [knowledge.EntryStore].
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return persistErr(fmt.Sprintf("delete entry %d", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr(fmt.Sprintf("delete entry %d", id), err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: delete entry %d: %w", id, knowledge.ErrNotFound)
	}
	return nil
}

func (s *Store) queryEntries(ctx context.Context, op, q string, args ...any) ([]knowledge.Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	entries := []knowledge.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, persistErr(op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (knowledge.Entry, error) {
	var (
		e       knowledge.Entry
		created int64
		edited  sql.NullString
		meta    string
	)
	if err := r.Scan(&e.ID, &created, &e.OriginalText, &e.ProcessedText, &edited, &e.FormatType, &meta); err != nil {
		return knowledge.Entry{}, err
	}
	e.CreatedAt = fromStamp(created)
	if edited.Valid {
		e.EditedText = &edited.String
	}
	md, err := unmarshalMetadata(meta)
	if err != nil {
		return knowledge.Entry{}, err
	}
	e.Metadata = md
	return e, nil
}

func marshalMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("%w: metadata: %w", knowledge.ErrValidation, err)
	}
	return string(b), nil
}

func unmarshalMetadata(s string) (map[string]any, error) {
	m := map[string]any{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}
