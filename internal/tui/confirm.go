// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("prompt cancelled")

type (
	// ConfirmOptions configures the Confirm component.
	ConfirmOptions struct {
		// Title is the question to display.
		Title string
		// Description provides additional context below the title.
		Description string
		// Affirmative is the text for the affirmative option (default: "Yes").
		Affirmative string
		// Negative is the text for the negative option (default: "No").
		Negative string
		// Default is the preselected answer.
		Default bool
		Config  Config
	}

	// ConfirmBuilder provides a fluent API for building Confirm prompts.
	ConfirmBuilder struct {
		opts ConfirmOptions
	}
)

// Confirm asks a yes/no question.
func Confirm(ctx context.Context, opts ConfirmOptions) (bool, error) {
	if opts.Affirmative == "" {
		opts.Affirmative = "Yes"
	}
	if opts.Negative == "" {
		opts.Negative = "No"
	}

	if opts.Config.Accessible {
		return confirmLine(opts)
	}

	result := opts.Default
	field := huh.NewConfirm().
		Title(opts.Title).
		Description(opts.Description).
		Affirmative(opts.Affirmative).
		Negative(opts.Negative).
		Value(&result)

	err := huh.NewForm(huh.NewGroup(field)).
		WithTheme(huhTheme(opts.Config.Theme)).
		WithOutput(opts.Config.output()).
		WithShowHelp(false).
		RunWithContext(ctx)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrCancelled
		}
		return false, err
	}
	return result, nil
}

// confirmLine reads a y/n answer from a single line of input. An empty line
// selects the default.
func confirmLine(opts ConfirmOptions) (bool, error) {
	hint := "y/N"
	if opts.Default {
		hint = "Y/n"
	}
	out := opts.Config.output()
	reader := bufio.NewReader(opts.Config.input())

	for {
		fmt.Fprintf(out, "%s [%s] ", opts.Title, hint)
		line, err := reader.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		switch {
		case answer == "" && err != nil:
			return false, ErrCancelled
		case answer == "":
			return opts.Default, nil
		case answer == "y" || answer == "yes":
			return true, nil
		case answer == "n" || answer == "no":
			return false, nil
		}
		if err != nil {
			return false, ErrCancelled
		}
	}
}

// NewConfirm starts a ConfirmBuilder with the default configuration.
func NewConfirm() *ConfirmBuilder {
	return &ConfirmBuilder{opts: ConfirmOptions{Config: DefaultConfig()}}
}

// Title sets the question.
func (b *ConfirmBuilder) Title(title string) *ConfirmBuilder {
	b.opts.Title = title
	return b
}

// Default sets the preselected answer.
func (b *ConfirmBuilder) Default(value bool) *ConfirmBuilder {
	b.opts.Default = value
	return b
}

// WithConfig replaces the TUI configuration.
func (b *ConfirmBuilder) WithConfig(cfg Config) *ConfirmBuilder {
	b.opts.Config = cfg
	return b
}

// Run shows the prompt.
func (b *ConfirmBuilder) Run(ctx context.Context) (bool, error) {
	return Confirm(ctx, b.opts)
}
