package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/llmanspec/archive"
)

type archiveOptions struct {
	dryRun    bool
	force     bool
	skipSpecs bool
	pretty    bool
	json      bool
}

func newArchiveCmd(app func() *App) *cobra.Command {
	opts := &archiveOptions{}

	cmd := &cobra.Command{
		Use:   "archive <change-id>",
		Short: "Merge a change's deltas into the specs and archive the change",
		Long: `Merge every delta document of a change into its spec, then move the
change to changes/archive/YYYY-MM-DD-<change-id>.

Each rebuilt spec must pass strict validation and a staleness check
before anything is written. --force skips that gate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			report, err := a.Archiver().Archive(cmd.Context(), archive.ArchiveOptions{
				ChangeID:  args[0],
				DryRun:    opts.dryRun,
				Force:     opts.force,
				SkipSpecs: opts.skipSpecs,
				Pretty:    a.pretty(boolFlag(cmd, "pretty", opts.pretty)),
			})
			if err != nil {
				if opts.json && report != nil {
					_ = writeJSON(cmd.OutOrStdout(), report)
				}
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printArchiveReport(cmd.OutOrStdout(), report, a.manager.Rel)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show what would change without writing")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Skip the post-merge validation and staleness gate")
	cmd.Flags().BoolVar(&opts.skipSpecs, "skip-specs", false, "Archive the change without touching any spec")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", true, "Align table columns in rewritten specs (default from output.pretty)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the report as JSON")

	cmd.AddCommand(newFreezeCmd(app), newThawCmd(app))
	return cmd
}

func newFreezeCmd(app func() *App) *cobra.Command {
	var (
		before     string
		keepRecent int
		dryRun     bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Pack dated archived changes into " + archive.FreezeFile,
		Long: `Pack archived change directories (YYYY-MM-DD-<id>) into a single
compressed file in the archive directory and remove them. An existing
freeze file is merged into, so freezing can be repeated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			opts := archive.FreezeOptions{KeepRecent: keepRecent, DryRun: dryRun}
			if before != "" {
				date, err := time.Parse(time.DateOnly, before)
				if err != nil {
					return fmt.Errorf("invalid --before date %q, expected YYYY-MM-DD", before)
				}
				opts.Before = date
			}

			report, err := archive.NewFreezer(a.manager, a.logger).Freeze(cmd.Context(), opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, report)
			}
			target := a.manager.Rel(report.Target)
			switch {
			case len(report.Changes) == 0:
				fmt.Fprintln(w, "No archived changes selected for freezing.")
			case report.DryRun:
				fmt.Fprintf(w, "Dry run: would freeze %d archived change(s) into %s:\n", len(report.Changes), target)
				for _, name := range report.Changes {
					fmt.Fprintf(w, "  - %s\n", name)
				}
			default:
				fmt.Fprintf(w, "Froze %d archived change(s) into %s\n", len(report.Changes), target)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "Freeze only changes archived before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&keepRecent, "keep-recent", 0, "Keep the N most recent selected changes unfrozen")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the changes that would be frozen")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

func newThawCmd(app func() *App) *cobra.Command {
	var (
		changes []string
		dest    string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "thaw",
		Short: "Restore archived changes from " + archive.FreezeFile,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if dest != "" {
				abs, err := filepath.Abs(dest)
				if err != nil {
					return err
				}
				dest = abs
			}
			report, err := archive.NewFreezer(a.manager, a.logger).Thaw(cmd.Context(), archive.ThawOptions{Changes: changes, Dest: dest})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Thawed %d archived change(s) to %s\n", len(report.Changes), a.manager.Rel(report.Dest))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&changes, "change", nil, "Restore only this archived change directory (repeatable)")
	cmd.Flags().StringVar(&dest, "dest", "", "Thaw destination (default: changes/archive/.thawed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

func printArchiveReport(w io.Writer, report *archive.ArchiveReport, rel func(string) string) {
	verb := "Updated"
	if report.DryRun {
		verb = "Would update"
	}
	for _, u := range report.Updates {
		action := verb
		if u.Created {
			action = "Created"
			if report.DryRun {
				action = "Would create"
			}
		}
		fmt.Fprintf(w, "%s spec %s: +%d ~%d -%d →%d\n",
			action, u.SpecID, u.Counts.Added, u.Counts.Modified, u.Counts.Removed, u.Counts.Renamed)
	}
	t := report.Totals
	fmt.Fprintf(w, "Totals: added=%d, modified=%d, removed=%d, renamed=%d\n", t.Added, t.Modified, t.Removed, t.Renamed)
	if report.DryRun {
		fmt.Fprintf(w, "Dry run: change %s would move to %s\n", report.ChangeID, rel(report.ArchivePath))
		return
	}
	fmt.Fprintf(w, "Archived change %s to %s\n", report.ChangeID, rel(report.ArchivePath))
}

// boolFlag returns a pointer to value when the flag was set explicitly, so
// configuration defaults apply otherwise.
func boolFlag(cmd *cobra.Command, name string, value bool) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}
