// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands for runner.
//
// The root command watches a single source file and re-runs it on every
// change, on the host or inside a disposable container. Subcommands list
// the known runtimes and manage the configuration file.
package cmd
