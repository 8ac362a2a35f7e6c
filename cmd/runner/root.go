// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/runnerdev/runner/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags holds the values of the root command's flags.
type rootFlags struct {
	runtime     string
	command     string
	image       string
	env         []string
	envFiles    []string
	noContainer bool
	engine      string
	verbose     bool
	configPath  string

	// noContainerSet is true when --no-container was given explicitly, so
	// --no-container=false overrides the configured default.
	noContainerSet bool
}

// NewRootCommand builds the command tree with production dependencies.
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp())
}

func newRootCommand(a *app) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "runner [path]",
		Short: "Re-run a source file every time it changes",
		Long: TitleStyle.Render("runner") + SubtitleStyle.Render(" - Re-run a source file every time it changes") + `

runner watches one source file and runs it again on every save, either
with the toolchain installed on your machine or inside a disposable
Docker/Podman container. Compiled languages are built first; each run
reports build and run timings and the delta from the previous run.

Without a path, runner creates a scratch file for --runtime (TypeScript
by default) and removes it when you stop watching.

` + SubtitleStyle.Render("Examples:") + `
  runner main.py                      Watch and run main.py
  runner --runtime rust               Start a Rust scratch file
  runner app.js --command "node --trace-warnings"
  runner main.go --image golang:1.25  Use a specific container image
  runner script.rb --no-container     Always run on the host`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.noContainerSet = cmd.Flags().Changed("no-container")
			err := a.watch(cmd.Context(), flags, args)
			return reportError(cmd, err, flags.verbose)
		},
	}

	f := rootCmd.Flags()
	f.StringVarP(&flags.runtime, "runtime", "r", "", "language for the scratch file when no path is given (default typescript)")
	f.StringVarP(&flags.command, "command", "c", "", "command used instead of the runtime's default; the file path is appended")
	f.StringVar(&flags.image, "image", "", "container image used instead of the runtime's default")
	f.StringArrayVarP(&flags.env, "env", "e", nil, "environment variable as KEY=VALUE (repeatable)")
	f.StringArrayVar(&flags.envFiles, "env-file", nil, "dotenv file loaded before --env entries; suffix with '?' to make it optional (repeatable)")
	f.BoolVar(&flags.noContainer, "no-container", false, "always run with the host toolchain")
	f.StringVar(&flags.engine, "engine", "", "container engine: docker or podman (default from config)")

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $HOME/.config/runner/config.cue)")

	rootCmd.AddCommand(newRuntimesCommand(a))
	rootCmd.AddCommand(newConfigCommand(a, flags))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	// WithNotifySignal cancels the command context on Ctrl+C, which ends the watch session.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// reportError prints err for the user and converts it into an ExitError so
// that fang does not print it a second time.
func reportError(cmd *cobra.Command, err error, verbose bool) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))

	if verbose {
		var ae *issue.ActionableError
		if errors.As(err, &ae) {
			if guide := issue.RenderFor(ae, glamourStyle(stderr)); guide != "" {
				fmt.Fprint(stderr, guide)
			}
		}
	}

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: 1, Err: err}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// glamourStyle picks the markdown style for w: "dark" on a terminal,
// "notty" otherwise.
func glamourStyle(w any) string {
	if isTerminal(w) {
		return "dark"
	}
	return "notty"
}

// isTerminal reports whether stream is a file attached to a terminal.
func isTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
