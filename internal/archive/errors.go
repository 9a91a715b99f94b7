package archive

import "errors"

var (
	// ErrStaleState indicates the challenge state changed between the
	// trigger decision and the finalization attempt.
	ErrStaleState = errors.New("challenge state is stale")
)
