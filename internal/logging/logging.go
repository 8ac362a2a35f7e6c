// SPDX-License-Identifier: MPL-2.0

// Package logging installs the process-wide slog logger. Records are
// rendered by charmbracelet/log so they match the rest of the terminal output.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// Prefix is shown in front of every log line.
const Prefix = "runner"

// New returns a slog.Logger writing to w. Debug records are emitted only
// when verbose is set; otherwise warnings and errors are shown.
func New(w io.Writer, verbose bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		Prefix:          Prefix,
		Level:           level,
		ReportTimestamp: verbose,
	})
	return slog.New(handler)
}

// Setup builds a logger with New and makes it the slog default.
func Setup(w io.Writer, verbose bool) *slog.Logger {
	logger := New(w, verbose)
	slog.SetDefault(logger)
	return logger
}
