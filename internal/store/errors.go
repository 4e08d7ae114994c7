package store

import "errors"

var (
	// ErrNotFound is returned when no route exists for the requested
	// destination.
	ErrNotFound = errors.New("route not found")
	// ErrConflict is returned on insert when a route already exists for
	// the destination.
	ErrConflict = errors.New("route already exists")
	// ErrAmbiguous is returned when more than one row matches a
	// destination that must be unique.
	ErrAmbiguous = errors.New("multiple routes match destination")
)
