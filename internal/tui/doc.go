// SPDX-License-Identifier: MPL-2.0

// Package tui provides the interactive terminal components the runner needs:
// a yes/no confirmation and a spinner around a blocking action, both built
// on charmbracelet/huh. Components fall back to plain line-based output when
// stdin is not a terminal or accessible mode is requested.
package tui
