package eventstore

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrencyConflict is returned by Push when an expected version
	// does not match the stored aggregate version. The command engine
	// retries on it.
	ErrConcurrencyConflict = errors.New("concurrency conflict: aggregate version mismatch")

	// ErrUniqueConstraintViolated is returned by Push when a claimed value
	// is already owned.
	ErrUniqueConstraintViolated = errors.New("unique constraint violated")

	// ErrStorageUnavailable wraps transport-level storage failures; callers
	// may retry.
	ErrStorageUnavailable = errors.New("event storage unavailable")
)

// UniqueConstraintError reports which value collided.
type UniqueConstraintError struct {
	UniqueType  string
	UniqueField string
	ErrorCode   string
}

func (e *UniqueConstraintError) Error() string {
	return fmt.Sprintf("unique constraint violated: %s=%q (%s)", e.UniqueType, e.UniqueField, e.ErrorCode)
}

func (e *UniqueConstraintError) Is(target error) bool {
	return target == ErrUniqueConstraintViolated
}
