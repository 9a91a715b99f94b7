package hotstore

import "errors"

// Sentinel kinds for hot store errors.
var (
	ErrNotFound      = errors.New("challenge not found")
	ErrAlreadyExists = errors.New("challenge already exists")
	ErrUnavailable   = errors.New("hot store unavailable")
)
