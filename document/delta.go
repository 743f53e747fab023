package document

import (
	"fmt"
	"strings"

	"github.com/c360studio/llmanspec/ison"
)

// DeltaMeta is the `object.delta` header.
type DeltaMeta struct {
	Version string `json:"version"`
	Kind    string `json:"kind"`
}

// Op is one `table.ops` row. Optional fields are nil when written as `~`.
// Per-op field rules are enforced when a plan is built, not here.
type Op struct {
	Op        OpKind  `json:"op"`
	ReqID     string  `json:"req_id"`
	Title     *string `json:"title,omitempty"`
	Statement *string `json:"statement,omitempty"`
	From      *string `json:"from,omitempty"`
	To        *string `json:"to,omitempty"`
	Name      *string `json:"name,omitempty"`
}

// Delta is a parsed delta body.
type Delta struct {
	Meta      DeltaMeta  `json:"meta"`
	Ops       []Op       `json:"ops"`
	Scenarios []Scenario `json:"op_scenarios"`
}

// Opt returns a pointer to s, for filling optional op fields.
func Opt(s string) *string {
	return &s
}

// Deref returns *p, or "" for nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// NewDelta returns a delta with a header and no ops.
func NewDelta() *Delta {
	return &Delta{
		Meta:      DeltaMeta{Version: Version, Kind: DeltaKind},
		Ops:       []Op{},
		Scenarios: []Scenario{},
	}
}

// ParseDeltaBody parses the canonical blocks of a delta body.
func ParseDeltaBody(body, context string) (*Delta, error) {
	doc, err := ison.ParseContent(body, context)
	if err != nil {
		return nil, err
	}
	return DeltaFromDocument(doc, context)
}

// DeltaFromDocument converts merged blocks into a Delta.
func DeltaFromDocument(doc *ison.Document, context string) (*Delta, error) {
	if err := DeltaSchema.CheckVocabulary(doc, context); err != nil {
		return nil, err
	}

	metaBlock, err := DeltaSchema.lookup(doc, "delta", context)
	if err != nil {
		return nil, err
	}
	if _, err := metaRow(metaBlock, "delta", DeltaKind, context); err != nil {
		return nil, err
	}
	delta := NewDelta()

	opsBlock, err := DeltaSchema.lookup(doc, "ops", context)
	if err != nil {
		return nil, err
	}
	for idx, row := range opsBlock.Rows {
		rowCtx := fmt.Sprintf("%s: table.ops row %d", context, idx+1)
		op, err := opFromRow(row, rowCtx)
		if err != nil {
			return nil, err
		}
		delta.Ops = append(delta.Ops, op)
	}

	scenarioBlock, err := DeltaSchema.lookup(doc, "op_scenarios", context)
	if err != nil {
		return nil, err
	}
	for idx, row := range scenarioBlock.Rows {
		rowCtx := fmt.Sprintf("%s: table.op_scenarios row %d", context, idx+1)
		sc, err := scenarioFromRow(row, rowCtx)
		if err != nil {
			return nil, err
		}
		delta.Scenarios = append(delta.Scenarios, sc)
	}
	return delta, nil
}

func opFromRow(row ison.Row, rowCtx string) (Op, error) {
	var op Op
	kind, err := requiredTrimmed(row, "op", rowCtx, false)
	if err != nil {
		return op, err
	}
	op.Op = OpKind(strings.ToLower(kind))
	if op.ReqID, err = requiredTrimmed(row, "req_id", rowCtx, false); err != nil {
		return op, err
	}
	optionals := []struct {
		field string
		dst   **string
	}{
		{"title", &op.Title},
		{"statement", &op.Statement},
		{"from", &op.From},
		{"to", &op.To},
		{"name", &op.Name},
	}
	for _, o := range optionals {
		v, ok, err := ison.OptionalString(row, o.field, rowCtx)
		if err != nil {
			return op, err
		}
		if ok {
			*o.dst = Opt(strings.TrimSpace(v))
		}
	}
	return op, nil
}

// Document returns the canonical blocks for d in output order.
func (d *Delta) Document() *ison.Document {
	meta := DeltaSchema.newBlock("delta")
	version := d.Meta.Version
	if strings.TrimSpace(version) == "" {
		version = Version
	}
	kind := d.Meta.Kind
	if kind == "" {
		kind = DeltaKind
	}
	meta.Append(ison.Row{
		"version": ison.String(version),
		"kind":    ison.String(kind),
	})

	ops := DeltaSchema.newBlock("ops")
	for _, op := range d.Ops {
		ops.Append(ison.Row{
			"op":        ison.String(string(op.Op)),
			"req_id":    ison.String(op.ReqID),
			"title":     optional(op.Title),
			"statement": optional(op.Statement),
			"from":      optional(op.From),
			"to":        optional(op.To),
			"name":      optional(op.Name),
		})
	}

	scenarios := DeltaSchema.newBlock("op_scenarios")
	appendScenarios(scenarios, d.Scenarios)

	return &ison.Document{Blocks: []*ison.Block{meta, ops, scenarios}}
}

func optional(p *string) ison.Value {
	if p == nil {
		return ison.Null()
	}
	return ison.String(*p)
}

// DumpDeltaBody renders d as a single ```ison fence.
func DumpDeltaBody(d *Delta, pretty bool) string {
	return ison.RenderFence(ison.Dumps(d.Document(), pretty))
}

// FindOp returns the first op for reqID, or nil.
func (d *Delta) FindOp(reqID string) *Op {
	for i := range d.Ops {
		if d.Ops[i].ReqID == reqID {
			return &d.Ops[i]
		}
	}
	return nil
}
