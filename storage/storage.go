// Package storage persists analysis results as a single JSON array that is
// rewritten in full after every processed item.
package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for common storage conditions.
var (
	// ErrStorageCorrupt indicates the result file could not be parsed.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
	// ErrClosed is returned by operations on a closed ResultStore.
	ErrClosed = errors.New("storage: store is closed")
	// ErrInvalidInput indicates invalid options or records were provided.
	ErrInvalidInput = errors.New("storage: invalid input")
)

// StorageError wraps storage errors with operation and entity context.
// Any StorageError returned while writing the result file is a persistence
// failure: the batch must abort rather than continue without durability.
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s %s: %v\n", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("read", "write", "lock", "upload").
	Op string
	// Entity is the entity type ("results", "file", "object").
	Entity string
	// ID is the file path or object key if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// PersistenceError is the name the batch layer uses for write failures.
type PersistenceError = StorageError
