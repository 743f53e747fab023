package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/llmanspec/document"
)

func addOp(reqID, title, statement string) document.Op {
	return document.Op{Op: document.OpAdd, ReqID: reqID, Title: document.Opt(title), Statement: document.Opt(statement)}
}

func TestBuildPlan(t *testing.T) {
	delta := document.NewDelta()
	delta.Ops = []document.Op{
		{Op: document.OpRename, ReqID: "r1", From: document.Opt("Old"), To: document.Opt("New")},
		addOp("r2", "Two", "It MUST two."),
		{Op: document.OpModify, ReqID: "r3", Title: document.Opt("Three"), Statement: document.Opt("It SHALL three.")},
		{Op: document.OpRemove, ReqID: "r4", Name: document.Opt("Four")},
		{Op: document.OpRemove, ReqID: "r5"},
	}
	delta.Scenarios = []document.Scenario{
		{ReqID: "r3", ID: "m", When: "w", Then: "t"},
		{ReqID: "r2", ID: "a", When: "w", Then: "t"},
	}

	plan, err := BuildPlan(delta, "delta")
	require.NoError(t, err)

	assert.Equal(t, Counts{Added: 1, Modified: 1, Removed: 2, Renamed: 1}, plan.Counts())
	assert.Equal(t, 5, plan.Counts().Total())
	require.Len(t, plan.Added[0].Scenarios, 1)
	assert.Equal(t, "a", plan.Added[0].Scenarios[0].ID)
	require.Len(t, plan.Modified[0].Scenarios, 1)
	assert.Equal(t, Rename{ReqID: "r1", From: "Old", To: "New"}, plan.Renamed[0])
	assert.Equal(t, "Four", plan.Removed[0].Name)
	assert.Equal(t, "", plan.Removed[1].Name)
}

func TestBuildPlanErrors(t *testing.T) {
	tests := []struct {
		name      string
		ops       []document.Op
		scenarios []document.Scenario
		msg       string
	}{
		{
			name: "add with from",
			ops:  []document.Op{{Op: document.OpAdd, ReqID: "r", Title: document.Opt("T"), Statement: document.Opt("MUST"), From: document.Opt("x")}},
			msg:  "delta: `from` must be `~` for op `add_requirement` (row 1)",
		},
		{
			name: "remove with title",
			ops:  []document.Op{addOp("a", "A", "MUST"), {Op: document.OpRemove, ReqID: "r", Title: document.Opt("")}},
			msg:  "delta: `title` must be `~` for op `remove_requirement` (row 2)",
		},
		{
			name: "rename with name",
			ops:  []document.Op{{Op: document.OpRename, ReqID: "r", From: document.Opt("a"), To: document.Opt("b"), Name: document.Opt("n")}},
			msg:  "`name` must be `~` for op `rename_requirement` (row 1)",
		},
		{
			name: "rename missing to",
			ops:  []document.Op{{Op: document.OpRename, ReqID: "r", From: document.Opt("a")}},
			msg:  "delta: table.ops row 1: missing required field `to`",
		},
		{
			name: "modify empty statement",
			ops:  []document.Op{{Op: document.OpModify, ReqID: "r", Title: document.Opt("T"), Statement: document.Opt(" ")}},
			msg:  "table.ops row 1: required field `statement` must not be empty",
		},
		{
			name: "unsupported op",
			ops:  []document.Op{{Op: "merge_requirement", ReqID: "r"}},
			msg:  "unsupported op `merge_requirement`",
		},
		{
			name:      "scenario for remove",
			ops:       []document.Op{{Op: document.OpRemove, ReqID: "r"}},
			scenarios: []document.Scenario{{ReqID: "r", ID: "s", When: "w", Then: "t"}},
			msg:       "op scenario references unknown or unsupported `req_id` `r` (must match an add/modify op)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := document.NewDelta()
			delta.Ops = tt.ops
			delta.Scenarios = tt.scenarios
			_, err := BuildPlan(delta, "delta")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCombine(t *testing.T) {
	a := &DeltaPlan{Added: []RequirementChange{{ReqID: "a"}}}
	b := &DeltaPlan{Renamed: []Rename{{ReqID: "r"}}, RenameDeclared: true}

	combined := Combine(a, nil, b)
	assert.Equal(t, Counts{Added: 1, Renamed: 1}, combined.Counts())
	assert.True(t, combined.RenameDeclared)
	assert.Equal(t, Counts{Added: 2, Renamed: 1}, combined.Counts().Add(Counts{Added: 1}))
}
