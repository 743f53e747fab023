package archive

import (
	"fmt"
	"strings"

	"github.com/c360studio/llmanspec/document"
)

// MergeOptions identifies the spec and change for error messages and
// for the skeleton of a new spec.
type MergeOptions struct {
	SpecID   string
	ChangeID string
}

// MergeResult is the outcome of Merge.
type MergeResult struct {
	Spec   *document.Spec
	Counts Counts
	// Created is set when target was nil and a skeleton was used.
	Created bool
}

// SkeletonPurpose is the purpose of a spec created by archiving changeID.
func SkeletonPurpose(changeID string) string {
	return fmt.Sprintf("TBD - created by archiving change %s. Update purpose after archive.", changeID)
}

type mergedRequirement struct {
	req       document.Requirement
	scenarios []document.Scenario
}

// Merge applies plan to target and returns a new spec; target is not
// modified. A nil target means the spec does not exist yet. Phases run
// in the order rename, remove, modify, add whatever the order of ops in
// the delta. On failure the returned result still carries the counts.
func Merge(target *document.Spec, plan *DeltaPlan, opts MergeOptions) (*MergeResult, error) {
	res := &MergeResult{Counts: plan.Counts()}

	if res.Counts.Total() == 0 {
		return res, newMergeError(ErrNoDeltas, opts.SpecID, "")
	}
	if target == nil && (res.Counts.Modified > 0 || res.Counts.Removed > 0 || res.Counts.Renamed > 0) {
		return res, newMergeError(ErrNewSpecOnlyAdded, opts.SpecID, "")
	}

	base := target
	if base == nil {
		base = document.SpecSkeleton(opts.SpecID, SkeletonPurpose(opts.ChangeID))
		res.Created = true
	}

	var order []string
	byID := make(map[string]*mergedRequirement, len(base.Requirements))
	for _, r := range base.Requirements {
		key := strings.TrimSpace(r.ReqID)
		order = append(order, key)
		byID[key] = &mergedRequirement{req: r, scenarios: base.ScenariosFor(r.ReqID)}
	}

	for _, rn := range plan.Renamed {
		key := strings.TrimSpace(rn.ReqID)
		current, ok := byID[key]
		if !ok {
			return res, newMergeError(ErrRenameMissing, opts.SpecID, rn.ReqID)
		}
		to := strings.TrimSpace(rn.To)
		for _, other := range byID {
			if strings.TrimSpace(other.req.Title) == to {
				return res, newMergeError(ErrRenameExists, opts.SpecID, rn.To)
			}
		}
		if from := strings.TrimSpace(rn.From); from != "" && strings.TrimSpace(current.req.Title) != from {
			me := newMergeError(ErrRenameSourceMismatch, opts.SpecID, rn.ReqID)
			me.Expected = rn.From
			me.Found = current.req.Title
			return res, me
		}
		current.req.Title = to
	}

	for _, rm := range plan.Removed {
		key := strings.TrimSpace(rm.ReqID)
		if _, ok := byID[key]; !ok {
			name := rm.Name
			if name == "" {
				name = rm.ReqID
			}
			return res, newMergeError(ErrRemoveMissing, opts.SpecID, name)
		}
		delete(byID, key)
		order = removeKey(order, key)
	}

	for _, mod := range plan.Modified {
		key := strings.TrimSpace(mod.ReqID)
		if _, ok := byID[key]; !ok {
			return res, newMergeError(ErrModifyMissing, opts.SpecID, mod.ReqID)
		}
		byID[key] = fromChange(key, mod)
	}

	for _, add := range plan.Added {
		key := strings.TrimSpace(add.ReqID)
		if _, ok := byID[key]; ok {
			return res, newMergeError(ErrAddExists, opts.SpecID, add.ReqID)
		}
		order = append(order, key)
		byID[key] = fromChange(key, add)
	}

	merged := document.SpecSkeleton(base.Meta.Name, base.Meta.Purpose)
	merged.Meta = base.Meta
	for _, key := range order {
		entry := byID[key]
		merged.Requirements = append(merged.Requirements, entry.req)
		for _, sc := range entry.scenarios {
			sc.ReqID = entry.req.ReqID
			merged.Scenarios = append(merged.Scenarios, sc)
		}
	}
	res.Spec = merged
	return res, nil
}

func fromChange(key string, c RequirementChange) *mergedRequirement {
	scenarios := make([]document.Scenario, len(c.Scenarios))
	copy(scenarios, c.Scenarios)
	return &mergedRequirement{
		req: document.Requirement{
			ReqID:     key,
			Title:     strings.TrimSpace(c.Title),
			Statement: strings.TrimSpace(c.Statement),
		},
		scenarios: scenarios,
	}
}

func removeKey(order []string, key string) []string {
	out := order[:0]
	for _, k := range order {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}
