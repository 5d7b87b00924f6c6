package post

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a post id is in neither directory.
var ErrNotFound = errors.New("post not found")

// ValidationError reports a caller-supplied field that cannot be accepted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StorageError wraps a filesystem failure on a required path.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("post storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
