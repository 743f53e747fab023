package ison

import (
	"errors"
	"fmt"
)

// Fence and payload errors.
var (
	// ErrMissingFence is returned when a document has no ```ison fence.
	ErrMissingFence = errors.New("missing ```ison code block")
	// ErrUnterminatedFence is returned when an ```ison fence is never closed.
	ErrUnterminatedFence = errors.New("unterminated ```ison code block")
	// ErrEmptyPayload is returned when an ```ison fence holds no content.
	ErrEmptyPayload = errors.New("empty ISON payload")
	// ErrLegacyJSON is returned when a fence holds a JSON object or array.
	ErrLegacyJSON = errors.New("legacy JSON detected in ```ison payload")
)

// ParseError reports a syntax problem inside a single payload.
type ParseError struct {
	// Line is the 1-based line within the payload.
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func parseErrorf(line int, format string, args ...any) error {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// IsParseError returns true if err wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
