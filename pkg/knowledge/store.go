// Package knowledge defines the correction-learning knowledge store used by
// glossa.
//
// The store is organised around three relations:
//
//   - Entries ([EntryStore]): the system of record for transcription events.
//     Each entry carries the machine transcript, the machine-rewritten text,
//     and an optional human-edited version.
//   - Corrections ([Ledger]): deduplicated, frequency-weighted
//     original→corrected substitution rules learned from human edits.
//   - Terminology ([Ledger]): vocabulary derived from proper-name and
//     terminology corrections.
//
// A [SemanticIndex] is an optional collaborator that ranks entries by
// embedding similarity. It never owns data; the [EntryStore] remains
// authoritative and every index failure degrades to substring search.
//
// Every implementation must be safe for concurrent use.
package knowledge

import "context"

// EntryStore is the durable table of transcription entries.
//
// All mutations are committed before the call returns. Implementations must
// return errors wrapping [ErrNotFound] for unknown ids, [ErrValidation] for
// rejected input, and [ErrPersistence] for storage failures.
type EntryStore interface {
	// CreateEntry inserts a new entry with no edited text and returns its id.
	// OriginalText and ProcessedText must be non-blank.
	CreateEntry(ctx context.Context, e NewEntry) (int64, error)

	// GetEntry returns the entry with the given id.
	GetEntry(ctx context.Context, id int64) (Entry, error)

	// ListEntries returns up to limit entries, most recent first.
	// A limit <= 0 applies the implementation default.
	ListEntries(ctx context.Context, limit int) ([]Entry, error)

	// SetEditedText stores a human edit for the entry and returns the updated
	// entry together with the processed text that was current inside the same
	// transaction. Callers feed that pair into the learning path.
	SetEditedText(ctx context.Context, id int64, edited string) (EditResult, error)

	// SearchEntries performs a case-insensitive containment match of query
	// against original and processed text. Results are most recent first and
	// capped at limit. A blank query yields an empty, non-nil slice.
	SearchEntries(ctx context.Context, query string, limit int) ([]Entry, error)

	// DeleteEntry removes the entry. Learned corrections are kept.
	DeleteEntry(ctx context.Context, id int64) error
}

// Ledger holds learned corrections and the derived terminology table.
type Ledger interface {
	// RecordCorrection upserts the correction keyed by (Original, Corrected).
	// The first observation inserts the row with usage count 1 and the given
	// context; later observations increment the count by exactly one and
	// refresh LastUsed without touching the stored context. Proper-name and
	// terminology observations also upsert the corrected phrase into the
	// terminology table within the same transaction.
	RecordCorrection(ctx context.Context, obs Observation) error

	// RecordTerminology upserts term, incrementing its frequency or inserting
	// it with frequency 1. LastUsed is always refreshed.
	RecordTerminology(ctx context.Context, term string, category CorrectionType) error

	// CorrectionsFor returns up to limit corrections whose original phrase
	// equals original exactly (case-sensitive), ordered by usage count then
	// recency, both descending.
	CorrectionsFor(ctx context.Context, original string, limit int) ([]Correction, error)

	// ListCorrections returns up to limit corrections ordered by usage count
	// then recency, both descending.
	ListCorrections(ctx context.Context, limit int) ([]Correction, error)

	// ListTerminology returns up to limit terms ordered by frequency
	// descending, then alphabetically.
	ListTerminology(ctx context.Context, limit int) ([]Term, error)
}

// Store combines the entry store and the ledger on a shared backend.
type Store interface {
	EntryStore
	Ledger

	// Stats returns aggregate counters across all three relations.
	Stats(ctx context.Context) (Stats, error)

	// Ping verifies that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}

// SemanticIndex ranks entries by embedding similarity to a query.
//
// It is an external, possibly remote collaborator. Every method may fail
// independently of the [EntryStore]; callers bound each call with a timeout
// and treat failures as [ErrCollaboratorUnavailable].
type SemanticIndex interface {
	// Upsert embeds text and stores it under the entry id, replacing any
	// previous vector for the same id.
	Upsert(ctx context.Context, id int64, text string, metadata map[string]any) error

	// Query returns up to k entry ids ranked by descending similarity.
	Query(ctx context.Context, text string, k int) ([]int64, error)

	// Delete removes the vector stored for id. Deleting an unknown id is not
	// an error.
	Delete(ctx context.Context, id int64) error
}
