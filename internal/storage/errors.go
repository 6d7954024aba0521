package storage

import (
	"errors"
	"fmt"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrNotFound is returned when a requested object doesn't exist.
	ErrNotFound = errors.New("object not found")

	// ErrKeyExists is returned when Put would replace an object without
	// Overwrite set.
	ErrKeyExists = errors.New("object already exists at this key")

	// ErrInvalidKey is returned for empty keys and keys that escape the
	// storage root ("../").
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrTooLarge is returned when an object exceeds PutOptions.MaxSize.
	ErrTooLarge = errors.New("object exceeds maximum size")

	// ErrAccessDenied is returned when the provider rejects the credentials
	// or bucket policy.
	ErrAccessDenied = errors.New("access denied")
)

// =============================================================================
// Structured Error Type
// =============================================================================

// StorageError records the operation and key of a failed storage call.
type StorageError struct {
	Op  string // "Put", "Get", "Delete", "URL", "Exists", "List"
	Key string // key or prefix involved
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidKey returns true if the error indicates an invalid storage key.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}
