// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

const (
	// ThemeDefault uses the base huh theme.
	ThemeDefault Theme = "default"
	// ThemeCharm uses the Charm theme.
	ThemeCharm Theme = "charm"
	// ThemeDracula uses the Dracula theme.
	ThemeDracula Theme = "dracula"
	// ThemeCatppuccin uses the Catppuccin theme.
	ThemeCatppuccin Theme = "catppuccin"
)

type (
	// Theme represents the visual theme for TUI components.
	Theme string

	// Config holds common configuration for TUI components.
	Config struct {
		Theme Theme
		// Accessible replaces interactive widgets with plain prompts.
		Accessible bool
		// Output is where components render. Prompts go to stderr so
		// they never mix with the watched program's stdout.
		Output io.Writer
		// Input is read by accessible prompts.
		Input io.Reader
	}
)

// DefaultConfig returns the configuration for the current terminal.
// Accessible mode is enabled when stdin is not a terminal or the
// ACCESSIBLE environment variable is set.
func DefaultConfig() Config {
	return Config{
		Theme:      ThemeCharm,
		Accessible: !isInputTerminal() || os.Getenv("ACCESSIBLE") != "",
		Output:     os.Stderr,
		Input:      os.Stdin,
	}
}

// isInputTerminal returns true if stdin is connected to a terminal.
func isInputTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (c Config) output() io.Writer {
	if c.Output == nil {
		return os.Stderr
	}
	return c.Output
}

func (c Config) input() io.Reader {
	if c.Input == nil {
		return os.Stdin
	}
	return c.Input
}

// huhTheme converts a Theme to a huh.Theme.
func huhTheme(t Theme) *huh.Theme {
	switch t {
	case ThemeCharm:
		return huh.ThemeCharm()
	case ThemeDracula:
		return huh.ThemeDracula()
	case ThemeCatppuccin:
		return huh.ThemeCatppuccin()
	default:
		return huh.ThemeBase()
	}
}
