package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c360studio/llmanspec/workflow/validation"
)

// errValidationFailed marks a run that finished with invalid items. The
// report has already been printed.
var errValidationFailed = errors.New("validation failed")

type validateOptions struct {
	all      bool
	changes  bool
	specs    bool
	itemType string
	strict   bool
	json     bool
}

func newValidateCmd(app func() *App) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [item-id]",
		Short: "Validate specs and changes",
		Long: `Validate one spec or change, or every item with --all, --changes or --specs.

Specs are checked for frontmatter, canonical structure, normative
statements and scenarios, and staleness against the git base ref.
Changes are checked for well-formed delta documents.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			itemType, err := validation.ParseItemType(opts.itemType)
			if err != nil {
				return err
			}
			strict := a.cfg.StrictValidation()
			if cmd.Flags().Changed("strict") {
				strict = opts.strict
			}

			svc := a.Service()
			var report *validation.BulkReport
			switch {
			case len(args) == 1:
				resolved, err := svc.Resolve(args[0], itemType)
				if err != nil {
					return err
				}
				report, err = svc.ValidateItem(cmd.Context(), resolved, args[0], strict)
				if err != nil {
					return err
				}
			case opts.all || opts.changes || opts.specs:
				changes := opts.all || opts.changes || itemType == validation.ItemChange
				specs := opts.all || opts.specs || itemType == validation.ItemSpec
				report, err = svc.ValidateAll(cmd.Context(), changes, specs, strict)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("nothing to validate: pass an item id, --all, --changes or --specs")
			}

			if opts.json {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				printBulkReport(cmd.OutOrStdout(), report)
			}

			if failed := report.Failed(); failed > 0 {
				return fmt.Errorf("%w: %d of %d item(s) invalid", errValidationFailed, failed, report.Summary.Totals.Items)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "Validate every change and spec")
	cmd.Flags().BoolVar(&opts.changes, "changes", false, "Validate every change")
	cmd.Flags().BoolVar(&opts.specs, "specs", false, "Validate every spec")
	cmd.Flags().StringVar(&opts.itemType, "type", "", "Item type when an id is ambiguous (change or spec)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Treat warnings as errors (default from validation.strict)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the report as JSON")

	return cmd
}

func printBulkReport(w io.Writer, report *validation.BulkReport) {
	for _, item := range report.Items {
		mark := "✓"
		if !item.Valid {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s %s", mark, item.Type, item.ID)
		if item.Type == validation.ItemSpec {
			fmt.Fprintf(w, " [staleness: %s]", item.Staleness.Status)
		}
		fmt.Fprintln(w)
		fmt.Fprint(w, validation.BuildReport(item.Issues, false).Format())
	}
	totals := report.Summary.Totals
	fmt.Fprintf(w, "Totals: %d item(s), %d passed, %d failed\n", totals.Items, totals.Passed, totals.Failed)
}
