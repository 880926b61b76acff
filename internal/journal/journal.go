// Package journal keeps an append-only record of learning runs as JSON
// lines in a local file. The ledger tables only hold aggregated counters;
// the journal keeps which edit taught which correction and when.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrWong99/glossa/internal/ledger"
)

// Compile-time interface check.
var _ ledger.Observer = (*FileJournal)(nil)

// Record is a single learning run written to the journal.
type Record struct {
	Timestamp   time.Time        `json:"timestamp"`
	EntryID     int64            `json:"entry_id"`
	Corrections []ledger.Learned `json:"corrections"`
	Failed      int              `json:"failed,omitempty"`
}

// FileJournal persists learning runs as JSON lines in a local file.
// Thread-safe for concurrent use.
type FileJournal struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileJournal creates a FileJournal that writes to the given path. The
// file and its directory are created on the first append.
func NewFileJournal(path string) *FileJournal {
	return &FileJournal{path: path, now: time.Now}
}

// Append writes one record to the journal.
func (j *FileJournal) Append(r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = j.now().UTC()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(j.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("journal: create directory: %w", err)
		}
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return nil
}

// ObserveLearning implements [ledger.Observer]. Journal failures are logged
// and never propagate into the learning path.
func (j *FileJournal) ObserveLearning(_ context.Context, r ledger.Report) {
	err := j.Append(Record{EntryID: r.EntryID, Corrections: r.Learned, Failed: r.Failed})
	if err != nil {
		slog.Warn("failed to append learning journal", "path", j.path, "err", err)
	}
}

// ReadAll returns every record in the journal, oldest first. A missing file
// yields no records.
func (j *FileJournal) ReadAll() ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}
	defer f.Close()

	out := []Record{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("journal: line %d: %w", line, err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("journal: read: %w", err)
	}
	return out, nil
}
