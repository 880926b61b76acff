// Package mock provides a test double for transcribe.Transcriber.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/glossa/pkg/provider/transcribe"
)

// TranscribeCall records one invocation of Transcribe.
type TranscribeCall struct {
	Audio    []byte
	Language string
}

// Transcriber is a mock transcribe.Transcriber returning Text or Err.
type Transcriber struct {
	mu sync.Mutex

	Text string
	Err  error

	calls []TranscribeCall
}

var _ transcribe.Transcriber = (*Transcriber)(nil)

// Transcribe records the call and returns the configured result.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, TranscribeCall{Audio: audio, Language: language})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.Err != nil {
		return "", t.Err
	}
	return t.Text, nil
}

// Calls returns a copy of the recorded calls.
func (t *Transcriber) Calls() []TranscribeCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TranscribeCall, len(t.calls))
	copy(out, t.calls)
	return out
}
