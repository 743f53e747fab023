package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/llmanspec/authoring"
	"github.com/c360studio/llmanspec/document"
	"github.com/c360studio/llmanspec/workflow"
	"github.com/c360studio/llmanspec/workflow/validation"
)

type specView struct {
	ID           string                 `json:"id"`
	Type         validation.ItemType    `json:"type"`
	Frontmatter  *document.Frontmatter  `json:"frontmatter,omitempty"`
	Meta         document.SpecMeta      `json:"meta"`
	Requirements []document.Requirement `json:"requirements"`
	Scenarios    []document.Scenario    `json:"scenarios,omitempty"`
}

type deltaView struct {
	Spec      string              `json:"spec"`
	Ops       []document.Op       `json:"ops"`
	Scenarios []document.Scenario `json:"op_scenarios,omitempty"`
}

type changeView struct {
	ID         string              `json:"id"`
	Type       validation.ItemType `json:"type"`
	Title      string              `json:"title"`
	DeltaCount int                 `json:"deltaCount"`
	Deltas     []deltaView         `json:"deltas"`
}

type showOptions struct {
	itemType     string
	requirements bool
	reqID        string
	deltasOnly   bool
}

func newShowCmd(app func() *App) *cobra.Command {
	opts := &showOptions{}

	cmd := &cobra.Command{
		Use:   "show <item-id>",
		Short: "Print a spec, or a change's deltas, as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			override, err := validation.ParseItemType(opts.itemType)
			if err != nil {
				return err
			}
			itemType, err := a.Service().Resolve(args[0], override)
			if err != nil {
				return err
			}

			var view any
			if itemType == validation.ItemSpec {
				if opts.deltasOnly {
					a.logger.Warn("Ignoring change-only flag for a spec", "flag", "--deltas-only", "spec", args[0])
				}
				view, err = showSpec(a.manager, args[0], opts)
			} else {
				var cv *changeView
				cv, err = showChange(a.manager, args[0], opts)
				view = cv
				if err == nil && opts.deltasOnly {
					view = cv.Deltas
				}
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().StringVar(&opts.itemType, "type", "", "Item type when an id is ambiguous (change or spec)")
	cmd.Flags().BoolVar(&opts.requirements, "requirements", false, "Omit scenarios")
	cmd.Flags().StringVar(&opts.reqID, "req", "", "Show only this requirement")
	cmd.Flags().BoolVar(&opts.deltasOnly, "deltas-only", false, "Change only: print just the deltas array")

	return cmd
}

func showSpec(m *workflow.Manager, id string, opts *showOptions) (*specView, error) {
	content, err := m.ReadSpec(id)
	if err != nil {
		return nil, err
	}
	fm := document.ParseFrontmatter(content)
	spec, err := document.ParseSpecBody(fm.Body, fmt.Sprintf("spec `%s`", id))
	if err != nil {
		return nil, err
	}

	view := &specView{
		ID:           id,
		Type:         validation.ItemSpec,
		Frontmatter:  fm.Frontmatter,
		Meta:         spec.Meta,
		Requirements: spec.Requirements,
		Scenarios:    spec.Scenarios,
	}
	if opts.reqID != "" {
		req := spec.Requirement(opts.reqID)
		if req == nil {
			return nil, unknownRequirement(opts.reqID, requirementIDs(spec.Requirements))
		}
		view.Requirements = []document.Requirement{*req}
		view.Scenarios = spec.ScenariosFor(opts.reqID)
	}
	if opts.requirements {
		view.Scenarios = nil
	}
	return view, nil
}

func showChange(m *workflow.Manager, id string, opts *showOptions) (*changeView, error) {
	files, err := m.ChangeDeltas(id)
	if err != nil {
		return nil, err
	}

	view := &changeView{ID: id, Type: validation.ItemChange, Title: id, Deltas: []deltaView{}}
	if proposal, err := m.ReadFile(filepath.Join(m.ChangePath(id), workflow.ProposalFile)); err == nil {
		view.Title = workflow.ProposalTitle(proposal, id)
	}
	var seen []string
	for _, f := range files {
		content, err := m.ReadFile(f.Path)
		if err != nil {
			return nil, err
		}
		_, body, _ := document.SplitFrontmatter(content)
		delta, err := document.ParseDeltaBody(body, fmt.Sprintf("delta spec `%s` for change `%s`", f.SpecID, id))
		if err != nil {
			return nil, err
		}

		dv := deltaView{Spec: f.SpecID, Ops: delta.Ops, Scenarios: delta.Scenarios}
		for _, op := range delta.Ops {
			seen = append(seen, op.ReqID)
		}
		if opts.reqID != "" {
			op := delta.FindOp(opts.reqID)
			if op == nil {
				continue
			}
			dv.Ops = []document.Op{*op}
			dv.Scenarios = nil
			for _, sc := range delta.Scenarios {
				if sc.ReqID == opts.reqID {
					dv.Scenarios = append(dv.Scenarios, sc)
				}
			}
		}
		if opts.requirements {
			dv.Scenarios = nil
		}
		view.Deltas = append(view.Deltas, dv)
	}

	if opts.reqID != "" && len(view.Deltas) == 0 {
		return nil, unknownRequirement(opts.reqID, seen)
	}
	view.DeltaCount = len(view.Deltas)
	return view, nil
}

func requirementIDs(reqs []document.Requirement) []string {
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ReqID)
	}
	return ids
}

func unknownRequirement(reqID string, candidates []string) error {
	err := fmt.Errorf("%w: `%s`", authoring.ErrUnknownRequirement, reqID)
	if hints := validation.NearestMatches(reqID, candidates, 3); len(hints) > 0 {
		err = fmt.Errorf("%w; did you mean: %s?", err, strings.Join(hints, ", "))
	}
	return err
}
