package services

import (
	"errors"

	"vidtube/internal/core/domain"
)

// lookupError keeps a store NotFound as NotFound under op and wraps anything
// else as a dependency failure.
func lookupError(op string, err error, format string, args ...interface{}) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound(op, format, args...)
	}
	return domain.DependencyFailure(op, err)
}
