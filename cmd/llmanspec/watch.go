package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/llmanspec/watch"
	"github.com/c360studio/llmanspec/workflow/validation"
)

func newWatchCmd(app func() *App) *cobra.Command {
	var (
		strict bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate specs and changes as their files are saved",
		Long: `Watch the llmanspec tree and validate each spec or change whose files
change. Runs until interrupted. Archived changes are ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if cmd.Flags().Changed("strict") {
				a.cfg.Validation.Strict = &strict
			}

			w, err := watch.NewWatcher(watch.Config{
				DebounceDelay:  a.cfg.Watch.DebounceDelay,
				FileExtensions: a.cfg.Watch.FileExtensions,
			}, a.manager.RootPath(), a.logger)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := w.Start(ctx); err != nil {
				_ = w.Stop()
				return fmt.Errorf("start watcher: %w", err)
			}
			defer w.Stop()

			out := cmd.OutOrStdout()
			runner := watch.NewRunner(w, a.Service(), a.manager,
				watch.WithStrict(a.cfg.StrictValidation()),
				watch.WithLogger(a.logger),
				watch.WithReportHandler(func(report *validation.BulkReport) {
					if asJSON {
						_ = writeJSON(out, report)
						return
					}
					printBulkReport(out, report)
				}))

			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", a.manager.Rel(a.manager.RootPath()))
			if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors (default from validation.strict)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print each report as JSON")

	return cmd
}
