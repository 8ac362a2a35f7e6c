// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"errors"
)

// Prompter answers the questions the image-install flow asks and shows
// progress while a pull is running.
type Prompter struct {
	cfg Config
}

// NewPrompter creates a Prompter rendering with cfg.
func NewPrompter(cfg Config) *Prompter {
	return &Prompter{cfg: cfg}
}

// Confirm asks title as a yes/no question defaulting to yes. An aborted
// prompt counts as a "no".
func (p *Prompter) Confirm(ctx context.Context, title string) (bool, error) {
	ok, err := NewConfirm().Title(title).Default(true).WithConfig(p.cfg).Run(ctx)
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return false, nil
	}
	return ok, err
}

// Track runs fn behind a spinner labeled title.
func (p *Prompter) Track(ctx context.Context, title string, fn func(context.Context) error) error {
	return SpinWithAction(ctx, p.cfg, title, fn)
}
