package knowledge

import "errors"

// Error categories. Implementations wrap one of these so callers can branch
// with [errors.Is] instead of inspecting messages.
var (
	// ErrValidation reports blank or malformed input to a write operation.
	// Nothing was written.
	ErrValidation = errors.New("knowledge: invalid input")

	// ErrNotFound reports an operation on an entry id that does not exist.
	ErrNotFound = errors.New("knowledge: not found")

	// ErrPersistence reports a storage engine failure. The write was not
	// partially applied.
	ErrPersistence = errors.New("knowledge: persistence failure")

	// ErrCollaboratorUnavailable reports that the semantic index or a rewrite
	// backend failed. Callers degrade to the documented fallback.
	ErrCollaboratorUnavailable = errors.New("knowledge: collaborator unavailable")

	// ErrLearning reports a failure while learning corrections from an edit.
	// The edit itself stays committed.
	ErrLearning = errors.New("knowledge: learning failed")

	// ErrTranscriptionFailed reports that speech-to-text produced no result.
	ErrTranscriptionFailed = errors.New("knowledge: transcription failed")
)
