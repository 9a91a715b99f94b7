package stats

import "errors"

// Sentinel kinds for submission errors.
var (
	ErrValidation = errors.New("invalid submission")
)
