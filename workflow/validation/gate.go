package validation

import (
	"context"

	"github.com/c360studio/llmanspec/staleness"
)

// ArchiveGate rejects rebuilt specs that fail strict validation. Staleness
// runs with spec_updated forced on, since the rebuilt file is not
// committed, and its warnings count as errors.
type ArchiveGate struct {
	evaluator *staleness.Evaluator
}

// NewArchiveGate creates a gate. A nil evaluator skips the staleness check.
func NewArchiveGate(evaluator *staleness.Evaluator) *ArchiveGate {
	return &ArchiveGate{evaluator: evaluator}
}

// CheckRebuilt implements archive.Gate.
func (g *ArchiveGate) CheckRebuilt(ctx context.Context, specID, specPath, content string) error {
	validation := ValidateSpecContent(specPath, content, true)
	issues := validation.Report.Issues

	if validation.Frontmatter != nil && g.evaluator != nil {
		updated := true
		res := g.evaluator.Evaluate(ctx, staleness.Input{
			SpecID:              specID,
			SpecPath:            specPath,
			Frontmatter:         validation.Frontmatter,
			SpecUpdatedOverride: &updated,
		})
		issues = append(issues, ApplyStrict(FromStaleness(res.Issues), true)...)
	}

	if HasErrors(issues) {
		return &GateError{SpecID: specID, Issues: issues}
	}
	return nil
}
