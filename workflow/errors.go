package workflow

import "errors"

// Common workflow errors.
var (
	// ErrInvalidID is returned when a spec or change id is not a single
	// path segment.
	ErrInvalidID = errors.New("invalid id")

	// ErrChangeNotFound is returned when a change directory does not exist.
	ErrChangeNotFound = errors.New("change not found")

	// ErrSpecNotFound is returned when a spec file does not exist.
	ErrSpecNotFound = errors.New("spec not found")

	// ErrChangeExists is returned when scaffolding a change that exists.
	ErrChangeExists = errors.New("change already exists")

	// ErrArchiveExists is returned when the archive target already exists.
	ErrArchiveExists = errors.New("archive target already exists")
)
