// Package ledger turns human edits into learned corrections.
//
// [Learner.LearnFromEdit] aligns the machine text of an entry with its edit
// word by word, classifies every replaced phrase and upserts it into the
// correction ledger. It runs after the edit has been committed and never
// touches the entry itself.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/glossa/internal/align"
	"github.com/MrWong99/glossa/internal/classify"
	"github.com/MrWong99/glossa/pkg/knowledge"
)

// Learned describes one correction recorded by a learning run.
type Learned struct {
	Original  string                   `json:"original"`
	Corrected string                   `json:"corrected"`
	Type      knowledge.CorrectionType `json:"type"`
}

// Report summarises a learning run.
type Report struct {
	EntryID int64     `json:"entry_id"`
	Learned []Learned `json:"corrections"`

	// Failed counts replacements whose upsert failed.
	Failed int `json:"failed"`
}

// Observer is notified after each learning run that recorded at least one
// correction. Implementations must not block for long.
type Observer interface {
	ObserveLearning(ctx context.Context, r Report)
}

// Option configures a [Learner].
type Option func(*Learner)

// WithObserver registers an observer for completed learning runs.
func WithObserver(o Observer) Option {
	return func(l *Learner) { l.observers = append(l.observers, o) }
}

// Learner learns corrections into a [knowledge.Ledger]. It is safe for
// concurrent use; all coordination is left to the ledger's upserts.
type Learner struct {
	ledger    knowledge.Ledger
	observers []Observer
}

// New returns a Learner that writes to ledger.
func New(ledger knowledge.Ledger, opts ...Option) *Learner {
	l := &Learner{ledger: ledger}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Plan returns the observations LearnFromEdit would record for the pair
// without writing anything.
func Plan(processed, edited string) []knowledge.Observation {
	reps := align.Replacements(align.Tokens(processed), align.Tokens(edited))
	obs := make([]knowledge.Observation, 0, len(reps))
	for _, r := range reps {
		obs = append(obs, knowledge.Observation{
			Original:      r.Original,
			Corrected:     r.Corrected,
			ContextBefore: r.ContextBefore,
			ContextAfter:  r.ContextAfter,
			Type:          classify.Classify(r.Original, r.Corrected),
		})
	}
	return obs
}

// LearnFromEdit records every replacement between processed and edited.
// Insertions and deletions carry no original→corrected pair and are
// ignored. Each replacement is recorded independently; when any of them
// fails the returned error wraps [knowledge.ErrLearning] together with the
// joined causes, and the report still lists the corrections that succeeded.
func (l *Learner) LearnFromEdit(ctx context.Context, entryID int64, processed, edited string) (Report, error) {
	report := Report{EntryID: entryID, Learned: []Learned{}}

	var errs []error
	for _, obs := range Plan(processed, edited) {
		if err := l.ledger.RecordCorrection(ctx, obs); err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("%q→%q: %w", obs.Original, obs.Corrected, err))
			continue
		}
		report.Learned = append(report.Learned, Learned{
			Original:  obs.Original,
			Corrected: obs.Corrected,
			Type:      obs.Type,
		})
		slog.Debug("learned correction",
			"entry_id", entryID,
			"original", obs.Original,
			"corrected", obs.Corrected,
			"type", obs.Type,
		)
	}

	if len(report.Learned) > 0 {
		for _, o := range l.observers {
			o.ObserveLearning(ctx, report)
		}
	}

	if len(errs) > 0 {
		return report, fmt.Errorf("ledger: learn from entry %d: %w: %w", entryID, knowledge.ErrLearning, errors.Join(errs...))
	}
	return report, nil
}
