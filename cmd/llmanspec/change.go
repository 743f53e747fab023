package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/llmanspec/workflow"
)

func newChangeCmd(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "change",
		Short: "Manage change directories",
	}

	var opts workflow.NewChangeOptions
	newCmd := &cobra.Command{
		Use:   "new <change-id>",
		Short: "Scaffold a change with proposal.md and tasks.md",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			files, err := a.manager.CreateChange(args[0], opts)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", a.manager.Rel(f))
			}
			return nil
		},
	}
	newCmd.Flags().StringVar(&opts.Title, "title", "", "Proposal title (default: the change id)")
	newCmd.Flags().StringVar(&opts.Why, "why", "", "Motivation for the Why section")
	newCmd.Flags().StringSliceVar(&opts.Sections, "section", nil, "Task section (repeatable)")
	newCmd.Flags().BoolVar(&opts.SkipTasks, "no-tasks", false, "Do not create tasks.md")

	cmd.AddCommand(newCmd)
	return cmd
}
