// Package archive applies delta plans to specs and archives completed
// changes.
package archive

import (
	"fmt"
	"strings"

	"github.com/c360studio/llmanspec/document"
)

// RequirementChange is an add or modify operation with its scenarios.
type RequirementChange struct {
	ReqID     string              `json:"req_id"`
	Title     string              `json:"title"`
	Statement string              `json:"statement"`
	Scenarios []document.Scenario `json:"scenarios"`
}

// Removal is a remove operation. Name is the optional display name.
type Removal struct {
	ReqID string `json:"req_id"`
	Name  string `json:"name,omitempty"`
}

// Rename changes the title of a requirement in place.
type Rename struct {
	ReqID string `json:"req_id"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// DeltaPlan is a delta grouped by operation kind.
type DeltaPlan struct {
	Added    []RequirementChange `json:"added"`
	Modified []RequirementChange `json:"modified"`
	Removed  []Removal           `json:"removed"`
	Renamed  []Rename            `json:"renamed"`
	// RenameDeclared is set by sources that have a rename section, so an
	// empty section can be reported.
	RenameDeclared bool `json:"renameDeclared,omitempty"`
}

// Counts tallies operations per kind.
type Counts struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`
	Renamed  int `json:"renamed"`
}

// Total returns the number of operations.
func (c Counts) Total() int {
	return c.Added + c.Modified + c.Removed + c.Renamed
}

// Add returns the element-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Added:    c.Added + o.Added,
		Modified: c.Modified + o.Modified,
		Removed:  c.Removed + o.Removed,
		Renamed:  c.Renamed + o.Renamed,
	}
}

// Counts tallies the plan.
func (p *DeltaPlan) Counts() Counts {
	return Counts{
		Added:    len(p.Added),
		Modified: len(p.Modified),
		Removed:  len(p.Removed),
		Renamed:  len(p.Renamed),
	}
}

// Combine concatenates plans in order into one plan.
func Combine(plans ...*DeltaPlan) *DeltaPlan {
	out := &DeltaPlan{}
	for _, p := range plans {
		if p == nil {
			continue
		}
		out.Added = append(out.Added, p.Added...)
		out.Modified = append(out.Modified, p.Modified...)
		out.Removed = append(out.Removed, p.Removed...)
		out.Renamed = append(out.Renamed, p.Renamed...)
		out.RenameDeclared = out.RenameDeclared || p.RenameDeclared
	}
	return out
}

// BuildPlan checks each op's field contract and groups the ops. Scenario
// rows attach to the add or modify op with the same req_id.
func BuildPlan(delta *document.Delta, context string) (*DeltaPlan, error) {
	plan := &DeltaPlan{}

	for idx, op := range delta.Ops {
		rowNum := idx + 1
		rowCtx := fmt.Sprintf("%s: table.ops row %d", context, rowNum)
		fields := map[string]*string{
			"title":     op.Title,
			"statement": op.Statement,
			"from":      op.From,
			"to":        op.To,
			"name":      op.Name,
		}
		mustBeNull := func(names ...string) error {
			for _, name := range names {
				if fields[name] != nil {
					return fmt.Errorf("%s: `%s` must be `~` for op `%s` (row %d)", context, name, op.Op, rowNum)
				}
			}
			return nil
		}
		required := func(name string) (string, error) {
			v := fields[name]
			if v == nil {
				return "", fmt.Errorf("%s: missing required field `%s`", rowCtx, name)
			}
			if strings.TrimSpace(*v) == "" {
				return "", fmt.Errorf("%s: required field `%s` must not be empty", rowCtx, name)
			}
			return strings.TrimSpace(*v), nil
		}

		switch op.Op {
		case document.OpAdd, document.OpModify:
			if err := mustBeNull("from", "to", "name"); err != nil {
				return nil, err
			}
			title, err := required("title")
			if err != nil {
				return nil, err
			}
			statement, err := required("statement")
			if err != nil {
				return nil, err
			}
			change := RequirementChange{ReqID: op.ReqID, Title: title, Statement: statement}
			if op.Op == document.OpAdd {
				plan.Added = append(plan.Added, change)
			} else {
				plan.Modified = append(plan.Modified, change)
			}
		case document.OpRemove:
			if err := mustBeNull("title", "statement", "from", "to"); err != nil {
				return nil, err
			}
			plan.Removed = append(plan.Removed, Removal{ReqID: op.ReqID, Name: document.Deref(op.Name)})
		case document.OpRename:
			if err := mustBeNull("title", "statement", "name"); err != nil {
				return nil, err
			}
			from, err := required("from")
			if err != nil {
				return nil, err
			}
			to, err := required("to")
			if err != nil {
				return nil, err
			}
			plan.Renamed = append(plan.Renamed, Rename{ReqID: op.ReqID, From: from, To: to})
		default:
			return nil, fmt.Errorf("%s: unsupported op `%s` (expected %s/%s/%s/%s)", context, op.Op,
				document.OpAdd, document.OpModify, document.OpRemove, document.OpRename)
		}
	}

	for _, sc := range delta.Scenarios {
		target := findChange(plan.Added, sc.ReqID)
		if target == nil {
			target = findChange(plan.Modified, sc.ReqID)
		}
		if target == nil {
			return nil, fmt.Errorf("%s: op scenario references unknown or unsupported `req_id` `%s` (must match an add/modify op)",
				context, sc.ReqID)
		}
		target.Scenarios = append(target.Scenarios, sc)
	}

	return plan, nil
}

// PlanFromContent parses a delta file, frontmatter included, into a plan.
func PlanFromContent(content, context string) (*DeltaPlan, error) {
	_, body, _ := document.SplitFrontmatter(content)
	delta, err := document.ParseDeltaBody(body, context)
	if err != nil {
		return nil, err
	}
	return BuildPlan(delta, context)
}

func findChange(changes []RequirementChange, reqID string) *RequirementChange {
	for i := range changes {
		if changes[i].ReqID == reqID {
			return &changes[i]
		}
	}
	return nil
}
