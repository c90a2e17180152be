// Package apperr defines the error taxonomy shared across the application.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound signals that an operation referenced a note or attachment id
// that does not exist. Operations that treat absence as a normal outcome
// (GetNoteByID, DeleteNote) never return it.
var ErrNotFound = errors.New("not found")

// StorageError wraps a failed read/write/copy/delete against backing storage.
type StorageError struct {
	Op   string // operation, e.g. "save media", "write note"
	Path string // file or key the operation targeted
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage constructs a StorageError.
func Storage(op, path string, err error) *StorageError {
	return &StorageError{Op: op, Path: path, Err: err}
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
