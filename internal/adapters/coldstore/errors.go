package coldstore

import "errors"

// Sentinel kinds for cold store errors.
var (
	ErrPutFailed = errors.New("cold store put failed")

	// ErrObjectExists reports that a create-only Put lost the race: another
	// writer already archived an object under the same key. Callers must not
	// treat their own batch as durable when they see this.
	ErrObjectExists = errors.New("cold store object already exists")
)
