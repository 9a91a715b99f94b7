package api

import (
	"errors"
	"fmt"

	"github.com/eraguess/eraguess/internal/adapters/hotstore"
	service "github.com/eraguess/eraguess/internal/app"
	"github.com/eraguess/eraguess/internal/archive"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// wrapKind tags err with an operation name and a sentinel kind so callers
// can use errors.Is on the kind.
func wrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// newKind tags a sentinel kind with an operation name.
func newKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

func isNotFound(err error) bool {
	return errors.Is(err, hotstore.ErrNotFound)
}

func isConflict(err error) bool {
	return errors.Is(err, hotstore.ErrAlreadyExists) || errors.Is(err, archive.ErrStaleState)
}

func isBackpressure(err error) bool {
	return errors.Is(err, service.ErrQueueFull)
}
