package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/llmanspec/workflow"
)

func newListCmd(app func() *App) *cobra.Command {
	var (
		specs  bool
		asJSON bool
		order  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active changes, or specs with --specs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if order != sortRecent && order != sortName {
				return fmt.Errorf("invalid --sort %q (expected %s or %s)", order, sortRecent, sortName)
			}
			a := app()
			w := cmd.OutOrStdout()
			if specs {
				items, err := a.manager.ListSpecs()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(w, map[string]any{"specs": nonNil(items)})
				}
				printSpecs(w, items)
				return nil
			}

			items, err := a.manager.ListChanges()
			if err != nil {
				return err
			}
			if order == sortRecent {
				sort.SliceStable(items, func(i, j int) bool {
					return items[i].LastModified.After(items[j].LastModified)
				})
			}
			if asJSON {
				return writeJSON(w, map[string]any{"changes": nonNil(items)})
			}
			printChanges(w, items)
			return nil
		},
	}

	cmd.Flags().BoolVar(&specs, "specs", false, "List specs instead of changes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.Flags().StringVar(&order, "sort", sortRecent, "Change sort order: recent (newest first) or name; specs are listed by id")

	return cmd
}

const (
	sortRecent = "recent"
	sortName   = "name"
)

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func printSpecs(w io.Writer, items []*workflow.SpecSummary) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No specs found.")
		return
	}
	t := newTable("SPEC", "REQUIREMENTS", "UPDATED")
	for _, s := range items {
		count := strconv.Itoa(s.RequirementCount)
		if s.ParseError != "" {
			count = "unreadable"
		}
		t.addRow(s.ID, count, s.LastModified.Format(time.DateTime))
	}
	fmt.Fprint(w, t.render())
}

func printChanges(w io.Writer, items []*workflow.ChangeSummary) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No active changes.")
		return
	}
	t := newTable("CHANGE", "DELTAS", "TASKS", "UPDATED")
	for _, c := range items {
		tasks := string(c.Status)
		if c.TotalTasks > 0 {
			tasks = fmt.Sprintf("%d/%d", c.CompletedTasks, c.TotalTasks)
		}
		t.addRow(c.ID, strconv.Itoa(c.DeltaCount), tasks, c.LastModified.Format(time.DateTime))
	}
	fmt.Fprint(w, t.render())
}
