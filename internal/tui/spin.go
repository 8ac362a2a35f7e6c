// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh/spinner"
)

// SpinWithAction shows a spinner with title while action runs and returns
// the action's error. In accessible mode the title is printed once instead.
// It never returns before action has, even when ctx is cancelled.
func SpinWithAction(ctx context.Context, cfg Config, title string, action func(context.Context) error) error {
	if cfg.Accessible {
		fmt.Fprintln(cfg.output(), title)
		return action(ctx)
	}

	return runTracked(ctx, action, func(wait func()) error {
		return spinner.New().
			Type(spinner.Dots).
			Title(" " + title).
			Context(ctx).
			Action(wait).
			Run()
	})
}

// runTracked runs action in its own goroutine and hands display a function
// that blocks until action finishes. display may stop early; runTracked
// still waits for action before reading its result.
func runTracked(ctx context.Context, action func(context.Context) error, display func(wait func()) error) error {
	done := make(chan struct{})
	var actionErr error
	go func() {
		defer close(done)
		actionErr = action(ctx)
	}()

	err := display(func() { <-done })
	<-done
	if err != nil {
		return err
	}
	return actionErr
}
