// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/runnerdev/runner/internal/config"
)

// newConfigCommand creates the `runner config` command tree.
func newConfigCommand(a *app, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage runner configuration",
		Long: `Manage runner configuration.

Configuration is stored in:
  - Linux: ~/.config/runner/config.cue
  - macOS: ~/Library/Application Support/runner/config.cue
  - Windows: %APPDATA%\runner\config.cue

A config.cue in the working directory is used when the file above does not exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reportError(cmd, showConfig(cmd, a, flags), flags.verbose)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reportError(cmd, initConfig(cmd, a), flags.verbose)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reportError(cmd, showConfigPath(cmd, a, flags), flags.verbose)
		},
	})

	return cfgCmd
}

func showConfig(cmd *cobra.Command, a *app, flags *rootFlags) error {
	opts := a.loadOptions(flags)
	cfg, err := a.config.Load(cmd.Context(), opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	path, _ := config.ResolvePath(opts)
	if path == "" {
		fmt.Fprintln(out, SubtitleStyle.Render("// using defaults"))
	} else {
		fmt.Fprintln(out, SubtitleStyle.Render("// loaded from "+path))
	}
	fmt.Fprint(out, config.GenerateCUE(cfg))
	return nil
}

func initConfig(cmd *cobra.Command, a *app) error {
	path, created, err := config.CreateDefaultConfig(a.configDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !created {
		fmt.Fprintf(out, "%s Config file already exists: %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(out, "%s Created config file: %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(cmd *cobra.Command, a *app, flags *rootFlags) error {
	opts := a.loadOptions(flags)
	path, err := config.ResolvePath(opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if path != "" {
		fmt.Fprintln(out, path)
		return nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		if dir, err = config.ConfigDir(); err != nil {
			return err
		}
	}
	path = filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
	fmt.Fprintf(out, "%s %s\n", path, SubtitleStyle.Render("(not created yet)"))
	return nil
}
