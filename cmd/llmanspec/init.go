package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/llmanspec/config"
)

func newInitCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the llmanspec directory tree and project config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.manager.EnsureDirectories(); err != nil {
				return err
			}

			configPath := a.manager.ConfigPath()
			_, err := os.Stat(configPath)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "Config already present: %s\n", a.manager.Rel(configPath))
			case errors.Is(err, fs.ErrNotExist):
				project := config.DefaultConfig()
				project.Repo.Path = ""
				project.Repo.SpecDir = a.cfg.Repo.SpecDir
				if err := project.SaveToFile(configPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", a.manager.Rel(configPath))
			default:
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", a.manager.Rel(a.manager.RootPath()))
			return nil
		},
	}
}
