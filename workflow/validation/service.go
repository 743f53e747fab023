package validation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/llmanspec/metrics"
	"github.com/c360studio/llmanspec/staleness"
	"github.com/c360studio/llmanspec/workflow"
)

// ReportVersion is the schema version of BulkReport JSON.
const ReportVersion = "1.0"

// ItemType distinguishes specs from changes.
type ItemType string

const (
	ItemChange ItemType = "change"
	ItemSpec   ItemType = "spec"
)

// ParseItemType maps a --type flag value to an ItemType. An empty value
// yields "" with no error.
func ParseItemType(s string) (ItemType, error) {
	switch ItemType(s) {
	case "", ItemChange, ItemSpec:
		return ItemType(s), nil
	default:
		return "", fmt.Errorf("invalid item type %q (expected change or spec)", s)
	}
}

// Item is the validation result of one spec or change.
type Item struct {
	ID         string         `json:"id"`
	Type       ItemType       `json:"type"`
	Valid      bool           `json:"valid"`
	Issues     []Issue        `json:"issues"`
	DurationMs int64          `json:"durationMs"`
	Staleness  staleness.Info `json:"staleness"`
}

// Counts tallies items by outcome.
type Counts struct {
	Items  int `json:"items"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

func (c *Counts) add(valid bool) {
	c.Items++
	if valid {
		c.Passed++
	} else {
		c.Failed++
	}
}

// BulkSummary totals a bulk run overall and per item type.
type BulkSummary struct {
	Totals Counts              `json:"totals"`
	ByType map[ItemType]Counts `json:"byType"`
}

// BulkReport is the JSON document written by `validate --json`.
type BulkReport struct {
	RunID   string      `json:"runId"`
	Items   []Item      `json:"items"`
	Summary BulkSummary `json:"summary"`
	Version string      `json:"version"`
}

// Failed returns the number of invalid items.
func (r *BulkReport) Failed() int {
	return r.Summary.Totals.Failed
}

// Service validates specs and changes in a project.
type Service struct {
	manager   *workflow.Manager
	evaluator *staleness.Evaluator
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a validation service. A nil evaluator reports every
// spec's staleness as not applicable.
func NewService(manager *workflow.Manager, evaluator *staleness.Evaluator, opts ...ServiceOption) *Service {
	s := &Service{
		manager:   manager,
		evaluator: evaluator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve determines whether id names a spec or a change. With a type
// override only that kind is considered.
func (s *Service) Resolve(id string, override ItemType) (ItemType, error) {
	changes, err := s.manager.ChangeIDs()
	if err != nil {
		return "", err
	}
	specs, err := s.manager.SpecIDs()
	if err != nil {
		return "", err
	}
	isChange := containsID(changes, id)
	isSpec := containsID(specs, id)

	switch override {
	case ItemChange:
		if !isChange {
			return "", &UnknownItemError{ID: id, Suggestions: NearestMatches(id, changes, 5)}
		}
		return ItemChange, nil
	case ItemSpec:
		if !isSpec {
			return "", &UnknownItemError{ID: id, Suggestions: NearestMatches(id, specs, 5)}
		}
		return ItemSpec, nil
	}

	switch {
	case isChange && isSpec:
		return "", fmt.Errorf("%w: `%s` is both a change and a spec; pass --type change|spec", ErrAmbiguousItem, id)
	case isChange:
		return ItemChange, nil
	case isSpec:
		return ItemSpec, nil
	default:
		all := append(append([]string{}, changes...), specs...)
		return "", &UnknownItemError{ID: id, Suggestions: NearestMatches(id, all, 5)}
	}
}

// ValidateItem validates a single item and wraps it in a bulk report.
func (s *Service) ValidateItem(ctx context.Context, itemType ItemType, id string, strict bool) (*BulkReport, error) {
	item, err := s.validate(ctx, itemType, id, strict)
	if err != nil {
		return nil, err
	}
	report := newBulkReport([]Item{item}, []ItemType{itemType})
	s.logger.Info("Validated item",
		"run_id", report.RunID,
		"type", itemType,
		"id", id,
		"valid", item.Valid)
	return report, nil
}

// ValidateAll validates every change and/or spec, sorted by id then type.
func (s *Service) ValidateAll(ctx context.Context, changes, specs, strict bool) (*BulkReport, error) {
	var (
		items   []Item
		allowed []ItemType
	)
	if changes {
		allowed = append(allowed, ItemChange)
		ids, err := s.manager.ChangeIDs()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			item, err := s.validate(ctx, ItemChange, id, strict)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}
	if specs {
		allowed = append(allowed, ItemSpec)
		ids, err := s.manager.SpecIDs()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			item, err := s.validate(ctx, ItemSpec, id, strict)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ID != items[j].ID {
			return items[i].ID < items[j].ID
		}
		return items[i].Type < items[j].Type
	})

	report := newBulkReport(items, allowed)
	s.logger.Info("Validated project",
		"run_id", report.RunID,
		"items", report.Summary.Totals.Items,
		"failed", report.Summary.Totals.Failed)
	return report, nil
}

func (s *Service) validate(ctx context.Context, itemType ItemType, id string, strict bool) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	if err := workflow.ValidateID(id, string(itemType)); err != nil {
		return Item{}, err
	}

	start := time.Now()
	var (
		report Report
		info   staleness.Info
	)
	switch itemType {
	case ItemChange:
		report = ValidateChange(s.manager.ChangePath(id), strict)
		info = staleness.NotApplicable()
	case ItemSpec:
		report, info = s.validateSpec(ctx, id, strict)
	default:
		return Item{}, fmt.Errorf("invalid item type %q", itemType)
	}
	elapsed := time.Since(start)

	metrics.RecordValidation(string(itemType), report.Valid, elapsed)
	for _, issue := range report.Issues {
		metrics.RecordIssue(string(issue.Level))
	}
	s.logger.Debug("Item validated",
		"type", itemType,
		"id", id,
		"valid", report.Valid,
		"issues", len(report.Issues),
		"duration", elapsed)

	return Item{
		ID:         id,
		Type:       itemType,
		Valid:      report.Valid,
		Issues:     report.Issues,
		DurationMs: elapsed.Milliseconds(),
		Staleness:  info,
	}, nil
}

// validateSpec validates the file and folds staleness issues in, with
// strict applied to both.
func (s *Service) validateSpec(ctx context.Context, id string, strict bool) (Report, staleness.Info) {
	path := s.manager.SpecPath(id)
	content, err := s.manager.ReadFile(path)
	if err != nil {
		return ErrorReport("file", fmt.Sprintf("failed to read spec: %v", err)), staleness.NotApplicable()
	}

	validation := ValidateSpecContent(path, content, strict)
	if s.evaluator == nil {
		return validation.Report, staleness.NotApplicable()
	}

	res := s.evaluator.Evaluate(ctx, staleness.Input{
		SpecID:      id,
		SpecPath:    path,
		Frontmatter: validation.Frontmatter,
	})
	issues := append(validation.Report.Issues, ApplyStrict(FromStaleness(res.Issues), strict)...)
	return BuildReport(issues, false), res.Info
}

func newBulkReport(items []Item, allowed []ItemType) *BulkReport {
	if items == nil {
		items = []Item{}
	}
	summary := BulkSummary{ByType: map[ItemType]Counts{}}
	for _, t := range allowed {
		summary.ByType[t] = Counts{}
	}
	for _, item := range items {
		summary.Totals.add(item.Valid)
		c := summary.ByType[item.Type]
		c.add(item.Valid)
		summary.ByType[item.Type] = c
	}
	return &BulkReport{
		RunID:   uuid.NewString(),
		Items:   items,
		Summary: summary,
		Version: ReportVersion,
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
