package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c360studio/llmanspec/migrate"
	"github.com/c360studio/llmanspec/workflow/validation"
)

func newMigrateCmd(app func() *App) *cobra.Command {
	var (
		dryRun bool
		pretty bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert legacy Markdown specs and deltas to ISON",
		Long: `Convert every legacy Markdown spec and change delta, archived changes
included, to canonical ISON in place. Files that already contain an
ISON block are skipped. Frontmatter is kept as written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			result, err := a.Migrator(boolFlag(cmd, "pretty", pretty)).Run(cmd.Context(), dryRun)
			if result != nil {
				if asJSON {
					if jerr := writeJSON(cmd.OutOrStdout(), result); jerr != nil {
						return jerr
					}
				} else {
					printMigrateResult(cmd.OutOrStdout(), result)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report conversions without writing")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "Align table columns (default from output.pretty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func printMigrateResult(w io.Writer, result *migrate.Result) {
	for _, f := range result.Files {
		switch f.Outcome {
		case migrate.OutcomeFailed:
			fmt.Fprintf(w, "✗ %s (%s): %s\n", f.Path, f.Kind, f.Error)
		case migrate.OutcomeSkipped:
			fmt.Fprintf(w, "- %s (%s): already ISON\n", f.Path, f.Kind)
		default:
			fmt.Fprintf(w, "✓ %s (%s)\n", f.Path, f.Kind)
			if len(f.Issues) > 0 {
				fmt.Fprint(w, validation.BuildReport(f.Issues, false).Format())
			}
		}
	}
	fmt.Fprintln(w, result.Summary())
}
