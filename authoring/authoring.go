// Package authoring builds and extends canonical spec and delta documents
// one row at a time. The helpers here operate on parsed values; Editor
// adds the read-modify-write cycle against a project.
package authoring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/llmanspec/document"
	"github.com/c360studio/llmanspec/workflow"
)

// DefaultPurpose is the placeholder purpose of a new spec.
const DefaultPurpose = "TODO: Describe this capability and its purpose."

// Placeholder scenario text written with every new requirement.
const (
	BaselineScenarioID = "baseline"
	PlaceholderWhen    = "TODO: describe the trigger"
	PlaceholderThen    = "TODO: describe the expected result"
)

// Sentinel errors returned by the helpers.
var (
	ErrEmptyField          = errors.New("required value is empty")
	ErrNotNormative        = errors.New("statement must contain MUST or SHALL")
	ErrRequirementExists   = errors.New("requirement already exists")
	ErrUnknownRequirement  = errors.New("unknown requirement")
	ErrScenarioExists      = errors.New("scenario already exists")
	ErrOpExists            = errors.New("op already exists")
	ErrUnsupportedOp       = errors.New("unsupported op")
	ErrScenarioNotAllowed  = errors.New("op scenarios are only allowed for add/modify ops")
	ErrMissingFrontmatter  = errors.New("spec is missing YAML frontmatter")
	ErrTargetAlreadyExists = errors.New("target already exists")
)

// NewSpecDocument returns an empty spec and the default frontmatter. An
// empty purpose is replaced by DefaultPurpose.
func NewSpecDocument(name, purpose string) (*document.Spec, document.Frontmatter) {
	if strings.TrimSpace(purpose) == "" {
		purpose = DefaultPurpose
	}
	return document.SpecSkeleton(name, strings.TrimSpace(purpose)), document.DefaultSpecFrontmatter()
}

// AddRequirement appends a requirement and its placeholder baseline
// scenario.
func AddRequirement(spec *document.Spec, reqID, title, statement string) error {
	reqID, title, statement = strings.TrimSpace(reqID), strings.TrimSpace(title), strings.TrimSpace(statement)
	if err := workflow.ValidateID(reqID, "requirement"); err != nil {
		return err
	}
	if title == "" {
		return fmt.Errorf("title: %w", ErrEmptyField)
	}
	if statement == "" {
		return fmt.Errorf("statement: %w", ErrEmptyField)
	}
	if !document.ContainsNormative(statement) {
		return ErrNotNormative
	}
	if spec.Requirement(reqID) != nil {
		return fmt.Errorf("%w: `%s`", ErrRequirementExists, reqID)
	}

	spec.Requirements = append(spec.Requirements, document.Requirement{
		ReqID:     reqID,
		Title:     title,
		Statement: statement,
	})
	spec.Scenarios = append(spec.Scenarios, document.Scenario{
		ReqID: reqID,
		ID:    BaselineScenarioID,
		When:  PlaceholderWhen,
		Then:  PlaceholderThen,
	})
	return nil
}

// AddScenario appends a scenario to an existing requirement.
func AddScenario(spec *document.Spec, reqID, id, given, when, then string) error {
	sc, err := newScenario(reqID, id, given, when, then)
	if err != nil {
		return err
	}
	if spec.Requirement(sc.ReqID) == nil {
		return fmt.Errorf("%w: `req_id` `%s`", ErrUnknownRequirement, sc.ReqID)
	}
	if hasScenario(spec.Scenarios, sc.ReqID, sc.ID) {
		return fmt.Errorf("%w: (req_id, id) = (`%s`, `%s`)", ErrScenarioExists, sc.ReqID, sc.ID)
	}
	spec.Scenarios = append(spec.Scenarios, sc)
	return nil
}

// NewDeltaDocument returns a delta with header blocks and no ops.
func NewDeltaDocument() *document.Delta {
	return document.NewDelta()
}

// OpInput describes one delta operation. Empty strings are absent values.
type OpInput struct {
	Op        string
	ReqID     string
	Title     string
	Statement string
	From      string
	To        string
	Name      string
}

// AddOp appends an operation. Each req_id may appear in one op only.
func AddOp(delta *document.Delta, in OpInput) error {
	reqID := strings.TrimSpace(in.ReqID)
	if err := workflow.ValidateID(reqID, "requirement"); err != nil {
		return err
	}
	if delta.FindOp(reqID) != nil {
		return fmt.Errorf("%w for `req_id` `%s`", ErrOpExists, reqID)
	}

	kind := document.OpKind(strings.ToLower(strings.TrimSpace(in.Op)))
	op := document.Op{Op: kind, ReqID: reqID}
	required := func(flag, value string) (*string, error) {
		v := strings.TrimSpace(value)
		if v == "" {
			return nil, fmt.Errorf("`--%s` is required for op `%s`: %w", flag, kind, ErrEmptyField)
		}
		return document.Opt(v), nil
	}

	var err error
	switch kind {
	case document.OpAdd, document.OpModify:
		if op.Title, err = required("title", in.Title); err != nil {
			return err
		}
		if op.Statement, err = required("statement", in.Statement); err != nil {
			return err
		}
		if !document.ContainsNormative(*op.Statement) {
			return fmt.Errorf("`--statement`: %w", ErrNotNormative)
		}
	case document.OpRemove:
		if name := strings.TrimSpace(in.Name); name != "" {
			op.Name = document.Opt(name)
		}
	case document.OpRename:
		if op.From, err = required("from", in.From); err != nil {
			return err
		}
		if op.To, err = required("to", in.To); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w `%s` (expected %s/%s/%s/%s)", ErrUnsupportedOp, in.Op,
			document.OpAdd, document.OpModify, document.OpRemove, document.OpRename)
	}

	delta.Ops = append(delta.Ops, op)
	return nil
}

// AddOpScenario appends a scenario to an add or modify op.
func AddOpScenario(delta *document.Delta, reqID, id, given, when, then string) error {
	sc, err := newScenario(reqID, id, given, when, then)
	if err != nil {
		return err
	}
	op := delta.FindOp(sc.ReqID)
	if op == nil {
		return fmt.Errorf("%w: unknown op `req_id` `%s`", ErrUnknownRequirement, sc.ReqID)
	}
	if !op.Op.CarriesScenarios() {
		return fmt.Errorf("%w; found `%s` for `req_id` `%s`", ErrScenarioNotAllowed, op.Op, sc.ReqID)
	}
	if hasScenario(delta.Scenarios, sc.ReqID, sc.ID) {
		return fmt.Errorf("%w: (req_id, id) = (`%s`, `%s`)", ErrScenarioExists, sc.ReqID, sc.ID)
	}
	delta.Scenarios = append(delta.Scenarios, sc)
	return nil
}

func newScenario(reqID, id, given, when, then string) (document.Scenario, error) {
	sc := document.Scenario{
		ReqID: strings.TrimSpace(reqID),
		ID:    strings.TrimSpace(id),
		Given: strings.TrimSpace(given),
		When:  strings.TrimSpace(when),
		Then:  strings.TrimSpace(then),
	}
	if err := workflow.ValidateID(sc.ReqID, "requirement"); err != nil {
		return sc, err
	}
	if err := workflow.ValidateID(sc.ID, "scenario"); err != nil {
		return sc, err
	}
	if sc.When == "" {
		return sc, fmt.Errorf("`--when`: %w", ErrEmptyField)
	}
	if sc.Then == "" {
		return sc, fmt.Errorf("`--then`: %w", ErrEmptyField)
	}
	return sc, nil
}

func hasScenario(scenarios []document.Scenario, reqID, id string) bool {
	for _, sc := range scenarios {
		if sc.ReqID == reqID && sc.ID == id {
			return true
		}
	}
	return false
}
