package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for item resolution and the archive gate.
var (
	// ErrUnknownItem indicates no spec or change has the requested id.
	ErrUnknownItem = errors.New("unknown item")

	// ErrAmbiguousItem indicates the id names both a spec and a change.
	ErrAmbiguousItem = errors.New("ambiguous item")

	// ErrRebuiltInvalid indicates a merged spec failed strict validation.
	ErrRebuiltInvalid = errors.New("rebuilt spec is invalid")
)

// UnknownItemError carries "did you mean" suggestions.
type UnknownItemError struct {
	ID          string
	Suggestions []string
}

func (e *UnknownItemError) Error() string {
	msg := fmt.Sprintf("unknown item `%s`", e.ID)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf("; did you mean: %s?", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *UnknownItemError) Unwrap() error {
	return ErrUnknownItem
}

// GateError lists the issues that blocked an archive.
type GateError struct {
	SpecID string
	Issues []Issue
}

func (e *GateError) Error() string {
	return FormatIssues(e.Issues)
}

func (e *GateError) Unwrap() error {
	return ErrRebuiltInvalid
}

// IsGateError reports whether err is or wraps a GateError.
func IsGateError(err error) bool {
	var ge *GateError
	return errors.As(err, &ge)
}
