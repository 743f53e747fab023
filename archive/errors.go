package archive

import (
	"errors"
	"fmt"
)

// Merge failure causes. A *MergeError wraps exactly one of these.
var (
	ErrNoDeltas             = errors.New("no delta operations")
	ErrNewSpecOnlyAdded     = errors.New("new spec may only add requirements")
	ErrRenameMissing        = errors.New("rename target requirement not found")
	ErrRenameExists         = errors.New("rename destination title already exists")
	ErrRenameSourceMismatch = errors.New("rename source mismatch")
	ErrRemoveMissing        = errors.New("removed requirement not found")
	ErrModifyMissing        = errors.New("modified requirement not found")
	ErrAddExists            = errors.New("added requirement already exists")
)

var mergeCodes = map[error]string{
	ErrNoDeltas:             "no_deltas",
	ErrNewSpecOnlyAdded:     "new_spec_only_added",
	ErrRenameMissing:        "rename_missing",
	ErrRenameExists:         "rename_exists",
	ErrRenameSourceMismatch: "rename_source_mismatch",
	ErrRemoveMissing:        "remove_missing",
	ErrModifyMissing:        "modify_missing",
	ErrAddExists:            "add_exists",
}

// MergeError reports why a plan could not be applied to a spec.
type MergeError struct {
	// Code is a stable identifier such as "rename_missing".
	Code   string
	SpecID string
	// Name is the offending req_id, title, or removal name.
	Name string
	// Expected and Found are set for rename source mismatches.
	Expected string
	Found    string

	err error
}

func newMergeError(cause error, specID, name string) *MergeError {
	return &MergeError{Code: mergeCodes[cause], SpecID: specID, Name: name, err: cause}
}

func (e *MergeError) Error() string {
	switch e.err {
	case ErrNoDeltas:
		return fmt.Sprintf("spec `%s`: delta contains no operations", e.SpecID)
	case ErrNewSpecOnlyAdded:
		return fmt.Sprintf("spec `%s` does not exist yet; a new spec may only use add_requirement ops", e.SpecID)
	case ErrRenameMissing:
		return fmt.Sprintf("spec `%s`: cannot rename requirement `%s`: not found", e.SpecID, e.Name)
	case ErrRenameExists:
		return fmt.Sprintf("spec `%s`: cannot rename to `%s`: a requirement with that title already exists", e.SpecID, e.Name)
	case ErrRenameSourceMismatch:
		return fmt.Sprintf("Rename source mismatch for spec `%s` requirement `%s`: expected `%s`, found `%s`",
			e.SpecID, e.Name, e.Expected, e.Found)
	case ErrRemoveMissing:
		return fmt.Sprintf("spec `%s`: cannot remove requirement `%s`: not found", e.SpecID, e.Name)
	case ErrModifyMissing:
		return fmt.Sprintf("spec `%s`: cannot modify requirement `%s`: not found", e.SpecID, e.Name)
	case ErrAddExists:
		return fmt.Sprintf("spec `%s`: cannot add requirement `%s`: req_id already exists", e.SpecID, e.Name)
	default:
		return fmt.Sprintf("spec `%s`: merge failed: %v", e.SpecID, e.err)
	}
}

func (e *MergeError) Unwrap() error {
	return e.err
}

// IsMergeError returns true if err wraps a *MergeError.
func IsMergeError(err error) bool {
	var me *MergeError
	return errors.As(err, &me)
}

// MergeErrorCode returns the code of a wrapped *MergeError, or "".
func MergeErrorCode(err error) string {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}
