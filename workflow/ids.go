package workflow

import (
	"fmt"
	"strings"
)

// ValidateID rejects ids that could escape their parent directory. kind
// names the id in the error ("spec" or "change").
func ValidateID(id, kind string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" || trimmed == "." || trimmed == ".." || strings.ContainsAny(trimmed, `/\`) {
		return fmt.Errorf("%w: %s id %q", ErrInvalidID, kind, id)
	}
	return nil
}
