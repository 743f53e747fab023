// Package main provides the llmanspec binary entry point.
// llmanspec keeps ISON spec documents in a repository, validates them,
// and merges change deltas into them on archive.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "llmanspec"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cmd, closeApp := rootCmd(os.Stderr)
	err := cmd.ExecuteContext(ctx)
	stop()
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	repoPath    string
	logLevel    string
	metricsFile string
}

// rootCmd builds the command tree. The returned func releases the app
// built for the executed command and writes the metrics textfile; it is
// safe to call when no app was built.
func rootCmd(logOut io.Writer) (*cobra.Command, func() error) {
	flags := &globalFlags{}
	var app *App

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Spec-driven development with canonical ISON documents",
		Long: `llmanspec manages the specs of a repository as ISON documents.

Specs live in llmanspec/specs/<id>/spec.md. Changes under
llmanspec/changes/<id>/ carry delta documents that are merged into the
specs when the change is archived.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsApp(cmd) {
				return nil
			}
			var err error
			app, err = NewApp(cmd.Context(), flags, logOut)
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&flags.repoPath, "repo", "", "Directory to start project discovery from (default: current directory)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the command")

	getApp := func() *App { return app }

	cmd.AddCommand(
		newInitCmd(getApp),
		newValidateCmd(getApp),
		newArchiveCmd(getApp),
		newSpecCmd(getApp),
		newDeltaCmd(getApp),
		newChangeCmd(getApp),
		newMigrateCmd(getApp),
		newListCmd(getApp),
		newShowCmd(getApp),
		newWatchCmd(getApp),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd, func() error {
		if app == nil {
			return nil
		}
		return app.Close()
	}
}

// needsApp reports whether cmd works on a project. Help, completion and
// version run without loading configuration.
func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}
