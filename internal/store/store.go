package store

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConcurrentModification is returned when a read-then-write pair lost
	// a race on the per-child write boundary.
	ErrConcurrentModification = errors.New("concurrent modification")
)
