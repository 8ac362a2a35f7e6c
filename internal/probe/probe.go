// SPDX-License-Identifier: MPL-2.0

// Package probe decides whether a runtime's host executable can be invoked.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/runnerdev/runner/internal/registry"
)

const (
	// VersionFlag is passed to every candidate executable.
	VersionFlag = "--version"

	// DefaultCacheTTL bounds how long a positive probe result is reused.
	DefaultCacheTTL = 30 * time.Second

	cacheSize = 64
)

var (
	// ErrUnsupported is returned when the descriptor names no host command.
	ErrUnsupported = errors.New("unsupported runtime")

	// ErrNotFound is the sentinel error wrapped by NotFoundError.
	ErrNotFound = errors.New("runtime not found")
)

type (
	// ExecCommandFunc creates the probe command. Tests inject a fake.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// NotFoundError is returned when none of a runtime's candidate
	// executables responds.
	NotFoundError struct {
		Language   registry.Language
		Candidates []string
	}

	// Option configures a Prober.
	Option func(*Prober)

	// Prober checks host executables with "<cmd> --version". Positive
	// results are cached for a short time; negative results are not, so
	// installing a toolchain mid-session is picked up on the next run.
	Prober struct {
		execCommand ExecCommandFunc
		cache       *expirable.LRU[string, bool]
		ttl         time.Duration
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s runtime not found: tried %s", e.Language, strings.Join(e.Candidates, ", "))
}

// Unwrap returns ErrNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(p *Prober) {
		p.execCommand = fn
	}
}

// WithCacheTTL sets how long positive results are reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(p *Prober) {
		p.ttl = ttl
	}
}

// New creates a Prober.
func New(opts ...Option) *Prober {
	p := &Prober{
		execCommand: exec.CommandContext,
		ttl:         DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ttl > 0 {
		p.cache = expirable.NewLRU[string, bool](cacheSize, nil, p.ttl)
	}
	return p
}

// IsAvailable reports whether any candidate executable of d responds.
func (p *Prober) IsAvailable(ctx context.Context, d registry.Descriptor) bool {
	_, err := p.ResolveCommand(ctx, d)
	return err == nil
}

// ResolveCommand returns the first candidate executable that responds,
// probing in the descriptor's priority order.
func (p *Prober) ResolveCommand(ctx context.Context, d registry.Descriptor) (string, error) {
	candidates := d.Commands()
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, d.Language)
	}
	for _, name := range candidates {
		if p.probe(ctx, name) {
			return name, nil
		}
	}
	return "", &NotFoundError{Language: d.Language, Candidates: candidates}
}

// probe treats any successful process start as available, whatever the
// exit status. Cancelling ctx does not kill a started probe, so a Ctrl+C
// racing a run never reports a present executable as missing.
func (p *Prober) probe(ctx context.Context, name string) bool {
	if p.cache != nil {
		if ok, hit := p.cache.Get(name); hit {
			return ok
		}
	}

	cmd := p.execCommand(context.WithoutCancel(ctx), name, VersionFlag)
	err := cmd.Run()
	var exitErr *exec.ExitError
	available := err == nil || errors.As(err, &exitErr)

	slog.Debug("probed runtime executable", "command", name, "available", available)
	if available && p.cache != nil {
		p.cache.Add(name, true)
	}
	return available
}
