// Package transcribe defines the Transcriber interface for speech-to-text
// backends used by the processing pipeline.
//
// Transcription is batch-oriented: a whole recording goes in, its text
// comes out. Implementations must be safe for concurrent use and wrap
// backend failures in [knowledge.ErrTranscriptionFailed].
package transcribe

import "context"

// Transcriber turns recorded speech into text.
type Transcriber interface {
	// Transcribe returns the text spoken in audio, a WAV recording.
	// language is an ISO 639-1 code such as "de"; empty lets the backend
	// detect it. A recording without recognisable speech is an error.
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}
