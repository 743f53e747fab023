package document

import (
	"fmt"
	"strings"

	"github.com/c360studio/llmanspec/ison"
)

// SpecMeta is the `object.spec` header.
type SpecMeta struct {
	Version string `json:"version"`
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}

// Requirement is one `table.requirements` row.
type Requirement struct {
	ReqID     string `json:"req_id"`
	Title     string `json:"title"`
	Statement string `json:"statement"`
}

// Scenario is one scenario row, keyed by (ReqID, ID).
type Scenario struct {
	ReqID string `json:"req_id"`
	ID    string `json:"id"`
	Given string `json:"given"`
	When  string `json:"when"`
	Then  string `json:"then"`
}

// Spec is a parsed spec body.
type Spec struct {
	Meta         SpecMeta      `json:"meta"`
	Requirements []Requirement `json:"requirements"`
	Scenarios    []Scenario    `json:"scenarios"`
}

// SpecSkeleton returns an empty spec with the given header.
func SpecSkeleton(name, purpose string) *Spec {
	return &Spec{
		Meta: SpecMeta{
			Version: Version,
			Kind:    SpecKind,
			Name:    name,
			Purpose: purpose,
		},
		Requirements: []Requirement{},
		Scenarios:    []Scenario{},
	}
}

// Requirement returns the requirement with reqID, or nil.
func (s *Spec) Requirement(reqID string) *Requirement {
	for i := range s.Requirements {
		if s.Requirements[i].ReqID == reqID {
			return &s.Requirements[i]
		}
	}
	return nil
}

// ScenariosFor returns the scenarios attached to reqID in document order.
func (s *Spec) ScenariosFor(reqID string) []Scenario {
	var out []Scenario
	for _, sc := range s.Scenarios {
		if sc.ReqID == reqID {
			out = append(out, sc)
		}
	}
	return out
}

// ParseSpecBody parses the canonical blocks of a spec body. The body must
// not include frontmatter.
func ParseSpecBody(body, context string) (*Spec, error) {
	doc, err := ison.ParseContent(body, context)
	if err != nil {
		return nil, err
	}
	return SpecFromDocument(doc, context)
}

// SpecFromDocument converts merged blocks into a Spec.
func SpecFromDocument(doc *ison.Document, context string) (*Spec, error) {
	if err := SpecSchema.CheckVocabulary(doc, context); err != nil {
		return nil, err
	}

	metaBlock, err := SpecSchema.lookup(doc, "spec", context)
	if err != nil {
		return nil, err
	}
	row, err := metaRow(metaBlock, "spec", SpecKind, context)
	if err != nil {
		return nil, err
	}
	spec := SpecSkeleton("", "")
	if spec.Meta.Name, err = requiredTrimmed(row, "name", context, false); err != nil {
		return nil, err
	}
	if spec.Meta.Purpose, err = requiredTrimmed(row, "purpose", context, false); err != nil {
		return nil, err
	}

	reqBlock, err := SpecSchema.lookup(doc, "requirements", context)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(reqBlock.Rows))
	for idx, row := range reqBlock.Rows {
		rowCtx := fmt.Sprintf("%s: table.requirements row %d", context, idx+1)
		var req Requirement
		if req.ReqID, err = requiredTrimmed(row, "req_id", rowCtx, false); err != nil {
			return nil, err
		}
		if req.Title, err = requiredTrimmed(row, "title", rowCtx, false); err != nil {
			return nil, err
		}
		if req.Statement, err = requiredTrimmed(row, "statement", rowCtx, false); err != nil {
			return nil, err
		}
		if seen[req.ReqID] {
			return nil, fmt.Errorf("%s: duplicate requirement `req_id` `%s`", context, req.ReqID)
		}
		seen[req.ReqID] = true
		spec.Requirements = append(spec.Requirements, req)
	}

	scenarioBlock, err := SpecSchema.lookup(doc, "scenarios", context)
	if err != nil {
		return nil, err
	}
	pairs := make(map[[2]string]bool, len(scenarioBlock.Rows))
	for idx, row := range scenarioBlock.Rows {
		rowCtx := fmt.Sprintf("%s: table.scenarios row %d", context, idx+1)
		sc, err := scenarioFromRow(row, rowCtx)
		if err != nil {
			return nil, err
		}
		if !seen[sc.ReqID] {
			return nil, fmt.Errorf("%s: scenario references unknown requirement `req_id` `%s`", context, sc.ReqID)
		}
		key := [2]string{sc.ReqID, sc.ID}
		if pairs[key] {
			return nil, fmt.Errorf("%s: duplicate scenario `(req_id, id)` = (`%s`, `%s`)", context, sc.ReqID, sc.ID)
		}
		pairs[key] = true
		spec.Scenarios = append(spec.Scenarios, sc)
	}
	return spec, nil
}

func scenarioFromRow(row ison.Row, rowCtx string) (Scenario, error) {
	var (
		sc  Scenario
		err error
	)
	if sc.ReqID, err = requiredTrimmed(row, "req_id", rowCtx, false); err != nil {
		return sc, err
	}
	if sc.ID, err = requiredTrimmed(row, "id", rowCtx, false); err != nil {
		return sc, err
	}
	if sc.Given, err = requiredTrimmed(row, "given", rowCtx, true); err != nil {
		return sc, err
	}
	if sc.When, err = requiredTrimmed(row, "when", rowCtx, false); err != nil {
		return sc, err
	}
	if sc.Then, err = requiredTrimmed(row, "then", rowCtx, false); err != nil {
		return sc, err
	}
	return sc, nil
}

// Document returns the canonical blocks for s in output order.
func (s *Spec) Document() *ison.Document {
	meta := SpecSchema.newBlock("spec")
	version := s.Meta.Version
	if strings.TrimSpace(version) == "" {
		version = Version
	}
	kind := s.Meta.Kind
	if kind == "" {
		kind = SpecKind
	}
	meta.Append(ison.Row{
		"version": ison.String(version),
		"kind":    ison.String(kind),
		"name":    ison.String(s.Meta.Name),
		"purpose": ison.String(s.Meta.Purpose),
	})

	reqs := SpecSchema.newBlock("requirements")
	for _, r := range s.Requirements {
		reqs.Append(ison.Row{
			"req_id":    ison.String(r.ReqID),
			"title":     ison.String(r.Title),
			"statement": ison.String(r.Statement),
		})
	}

	scenarios := SpecSchema.newBlock("scenarios")
	appendScenarios(scenarios, s.Scenarios)

	return &ison.Document{Blocks: []*ison.Block{meta, reqs, scenarios}}
}

func appendScenarios(b *ison.Block, scenarios []Scenario) {
	for _, sc := range scenarios {
		b.Append(ison.Row{
			"req_id": ison.String(sc.ReqID),
			"id":     ison.String(sc.ID),
			"given":  ison.String(sc.Given),
			"when":   ison.String(sc.When),
			"then":   ison.String(sc.Then),
		})
	}
}

// DumpSpecBody renders s as a single ```ison fence.
func DumpSpecBody(s *Spec, pretty bool) string {
	return ison.RenderFence(ison.Dumps(s.Document(), pretty))
}
