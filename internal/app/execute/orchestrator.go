// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/runnerdev/runner/internal/container"
	"github.com/runnerdev/runner/internal/registry"
	"github.com/runnerdev/runner/internal/runtime"
)

const (
	// InstallPrompt is asked when the image for a run is not installed.
	InstallPrompt = "Would you like to install it?"
	// PullTitle labels the progress indicator shown during a pull.
	PullTitle = "Pulling image..."
)

// ErrPullFailed is the sentinel error wrapped by PullFailedError.
var ErrPullFailed = errors.New("failed to pull image")

type (
	// ContainerExecutor runs requests inside containers and can install
	// missing images. *runtime.ContainerRuntime is the production implementation.
	ContainerExecutor interface {
		runtime.Executor
		Pull(ctx context.Context, image registry.ImageRef) ([]byte, error)
	}

	// Prompter asks the user a yes/no question.
	Prompter interface {
		Confirm(ctx context.Context, title string) (bool, error)
	}

	// Progress shows that fn is running.
	Progress interface {
		Track(ctx context.Context, title string, fn func(context.Context) error) error
	}

	// PullFailedError carries the engine diagnostics of a failed pull.
	PullFailedError struct {
		Image  registry.ImageRef
		Output string
		Cause  error
	}

	// Option configures an Orchestrator.
	Option func(*Orchestrator)

	// Orchestrator routes each request to the container or host executor
	// and normalizes both into a runtime.Outcome.
	Orchestrator struct {
		local     runtime.Executor
		container ContainerExecutor
		prompter  Prompter
		progress  Progress
		notices   io.Writer
	}

	plainProgress struct{}
)

// Error implements the error interface.
func (e *PullFailedError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("failed to pull image '%s': %v", e.Image, e.Cause)
	}
	return fmt.Sprintf("failed to pull image '%s':\n %s", e.Image, e.Output)
}

// Unwrap returns ErrPullFailed and the underlying cause.
func (e *PullFailedError) Unwrap() []error { return []error{ErrPullFailed, e.Cause} }

// IsRecoverable reports whether err ends only the current run and leaves the
// watch session alive.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrPullFailed) || errors.Is(err, runtime.ErrImageMissing)
}

// WithContainer enables the container path.
func WithContainer(c ContainerExecutor) Option {
	return func(o *Orchestrator) { o.container = c }
}

// WithPrompter sets the capability that confirms image installs. Without
// one, a missing image is reported instead of pulled.
func WithPrompter(p Prompter) Option {
	return func(o *Orchestrator) { o.prompter = p }
}

// WithProgress sets the indicator shown while pulling.
func WithProgress(p Progress) Option {
	return func(o *Orchestrator) { o.progress = p }
}

// WithNotices sets where user-facing notices are written (default stderr).
func WithNotices(w io.Writer) Option {
	return func(o *Orchestrator) { o.notices = w }
}

// NewOrchestrator creates an Orchestrator that falls back to local.
func NewOrchestrator(local runtime.Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		local:    local,
		progress: plainProgress{},
		notices:  os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes req once. A nil outcome with a nil error means the user
// declined to install a missing image and the run was skipped.
func (o *Orchestrator) Run(ctx context.Context, req runtime.Request) (*runtime.Outcome, error) {
	if useContainer, reason := o.containerPath(req); !useContainer {
		fmt.Fprintf(o.notices, "Running without containerization: %s\n", reason)
		outcome, err := o.local.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		return &outcome, nil
	}

	outcome, err := o.container.Run(ctx, req)
	if err == nil {
		return &outcome, nil
	}

	var missing *runtime.ImageMissingError
	if !errors.As(err, &missing) {
		return nil, err
	}
	return o.recoverMissingImage(ctx, req, missing)
}

// containerPath reports whether req goes to the container executor, and
// otherwise why not.
func (o *Orchestrator) containerPath(req runtime.Request) (bool, string) {
	switch {
	case req.NoContainer:
		return false, "containerization disabled"
	case !req.Descriptor.Supported():
		return false, "no container runtime for custom commands"
	case !req.Descriptor.HasContainer() && req.ImageOverride.IsZero():
		return false, fmt.Sprintf("unsupported container runtime '%s'", req.Descriptor.Language)
	case o.container == nil:
		return false, "no container engine available"
	default:
		return true, ""
	}
}

func (o *Orchestrator) recoverMissingImage(ctx context.Context, req runtime.Request, missing *runtime.ImageMissingError) (*runtime.Outcome, error) {
	fmt.Fprintf(o.notices, "Image not installed: '%s'\n", missing.Image)
	if o.prompter == nil {
		return nil, missing
	}

	install, err := o.prompter.Confirm(ctx, InstallPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm image install: %w", err)
	}
	if !install {
		slog.Debug("image install declined", "image", missing.Image.String())
		return nil, nil
	}

	var output []byte
	err = o.progress.Track(ctx, PullTitle, func(ctx context.Context) error {
		var pullErr error
		output, pullErr = o.container.Pull(ctx, missing.Image)
		return pullErr
	})
	if err != nil {
		fmt.Fprintln(o.notices, "✖ Pull failed")
		return nil, &PullFailedError{Image: missing.Image, Output: pullOutput(err, output), Cause: err}
	}
	fmt.Fprintln(o.notices, "✔ Image installed")

	outcome, err := o.container.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

// pullOutput prefers the diagnostics the engine attached to err.
func pullOutput(err error, raw []byte) string {
	var pullErr *container.PullError
	if errors.As(err, &pullErr) && pullErr.Output != "" {
		return pullErr.Output
	}
	return strings.TrimSpace(string(raw))
}

func (plainProgress) Track(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}
