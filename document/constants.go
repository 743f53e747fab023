// Package document maps llmanspec spec and delta files onto the ISON block
// model: a YAML frontmatter header followed by ```ison fences holding a
// fixed vocabulary of blocks.
package document

import "strings"

// Version is the only document version this package reads or writes.
const Version = "1.0.0"

// Document kinds carried in the `object.spec` and `object.delta` blocks.
const (
	SpecKind  = "llman.sdd.spec"
	DeltaKind = "llman.sdd.delta"
)

// OpKind names a delta operation.
type OpKind string

// Supported delta operations.
const (
	OpAdd    OpKind = "add_requirement"
	OpModify OpKind = "modify_requirement"
	OpRemove OpKind = "remove_requirement"
	OpRename OpKind = "rename_requirement"
)

// Valid reports whether k is one of the supported operations.
func (k OpKind) Valid() bool {
	switch k {
	case OpAdd, OpModify, OpRemove, OpRename:
		return true
	}
	return false
}

// CarriesScenarios reports whether op_scenarios rows may attach to k.
func (k OpKind) CarriesScenarios() bool {
	return k == OpAdd || k == OpModify
}

// ContainsNormative reports whether text carries a normative keyword.
// The check is case-sensitive.
func ContainsNormative(text string) bool {
	return strings.Contains(text, "SHALL") || strings.Contains(text, "MUST")
}
