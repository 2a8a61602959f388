package engine

import "errors"

// Error kinds surfaced by the command interface. Callers test with errors.Is;
// wrapped variants carry context about the offending pad or CC.
var (
	// ErrNotFound means a pad index is out of range or the pad is undefined.
	ErrNotFound = errors.New("not found")

	// ErrInvalidReference means a pad references a CC number that has no
	// definition in the project.
	ErrInvalidReference = errors.New("invalid CC reference")

	// ErrDeviceUnavailable means the MIDI sink cannot currently transmit.
	// Recoverable: output is retried on subsequent ticks.
	ErrDeviceUnavailable = errors.New("MIDI device unavailable")

	// ErrSessionLost means the tempo-sync session went away and the clock
	// fell back to its internal timer. Non-fatal status change.
	ErrSessionLost = errors.New("tempo-sync session lost")

	// ErrMalformedProject means a project file violates the schema.
	// Fatal to the load only; running playback state is untouched.
	ErrMalformedProject = errors.New("malformed project")
)
