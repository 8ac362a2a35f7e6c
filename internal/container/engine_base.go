// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// SELinuxLabelNone means no SELinux label is applied to volume mounts.
	SELinuxLabelNone SELinuxLabel = ""
	// SELinuxLabelShared allows sharing the volume between containers.
	SELinuxLabelShared SELinuxLabel = "z"

	pullAttempts = 3
	pullBackoff  = time.Second
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// VolumeFormatFunc formats a volume mount as a "-v" argument.
	// Podman uses this to add SELinux labels.
	VolumeFormatFunc func(volume VolumeMount) string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides common implementation for CLI-based container engines.
	// Docker and Podman engines embed this struct; engine-specific methods
	// (Available, ImageExists) remain on the concrete types.
	BaseCLIEngine struct {
		name            string
		binaryPath      string
		execCommand     ExecCommandFunc
		volumeFormatter VolumeFormatFunc
		selinuxCheck    func() bool
	}

	// SELinuxLabel represents an SELinux volume labeling option.
	SELinuxLabel string

	// VolumeMount is a bind mount of a host path into the container.
	VolumeMount struct {
		HostPath      string
		ContainerPath string
		SELinux       SELinuxLabel
	}
)

// String returns the volume mount in "host:container[:label]" format.
func (v VolumeMount) String() string {
	s := v.HostPath + ":" + v.ContainerPath
	if v.SELinux != SELinuxLabelNone {
		s += ":" + string(v.SELinux)
	}
	return s
}

// --- Option Functions ---

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithBinaryPath overrides the engine binary found on PATH.
func WithBinaryPath(path string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.binaryPath = path
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithVolumeFormatter sets a custom volume formatter function.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// WithSELinuxCheck replaces the SELinux detection used by Podman.
func WithSELinuxCheck(fn func() bool) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.selinuxCheck = fn
	}
}

// --- Constructor ---

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:      binaryPath,
		execCommand:     exec.CommandContext,
		volumeFormatter: func(v VolumeMount) string { return v.String() },
		selinuxCheck:    isSELinuxEnabled,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// RunArgs builds the 'run' argument slice. The order is fixed:
// run, bind mounts, interactive/tty flags, image, command.
func (e *BaseCLIEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	for _, v := range opts.Volumes {
		args = append(args, "-v", e.volumeFormatter(v))
	}

	switch {
	case opts.Interactive && opts.TTY:
		args = append(args, "-it")
	case opts.Interactive:
		args = append(args, "-i")
	case opts.TTY:
		args = append(args, "-t")
	}

	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	return args
}

// --- Execution ---

// CreateCommand creates an exec.Cmd for the engine binary.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binaryPath, args...)
}

// RunCommandStatus runs a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	cmd := e.CreateCommand(ctx, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return nil
}

// RunCommandCombined runs a command and returns combined stdout/stderr.
// The output is returned even when the command fails.
func (e *BaseCLIEngine) RunCommandCombined(ctx context.Context, args ...string) ([]byte, error) {
	cmd := e.CreateCommand(ctx, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return out, nil
}

// Run runs a command in a new container, attached to the given streams.
func (e *BaseCLIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if opts.Image == "" {
		return nil, errors.New("container run requires an image")
	}

	cmd := e.CreateCommand(ctx, e.RunArgs(opts)...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &RunResult{ExitCode: exitErr.ExitCode()}, nil
		}
		return nil, fmt.Errorf("failed to start %s run: %w", e.name, err)
	}

	return &RunResult{}, nil
}

// Pull pulls an image, retrying transient registry and network failures.
// The returned output is the engine's diagnostics from the last attempt.
func (e *BaseCLIEngine) Pull(ctx context.Context, image string) ([]byte, error) {
	var out []byte
	err := RetryWithBackoff(ctx, pullAttempts, pullBackoff, func(_ int) (bool, error) {
		var err error
		out, err = e.RunCommandCombined(ctx, "pull", image)
		if err == nil {
			return false, nil
		}
		err = &PullError{Image: image, Output: strings.TrimSpace(string(out)), Cause: err}
		return IsTransientError(err), err
	})
	return out, err
}

// PullError carries the engine output of a failed pull.
type PullError struct {
	Image  string
	Output string
	Cause  error
}

// Error implements the error interface.
func (e *PullError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("failed to pull image '%s': %v", e.Image, e.Cause)
	}
	return fmt.Sprintf("failed to pull image '%s': %s", e.Image, e.Output)
}

// Unwrap returns the underlying command error.
func (e *PullError) Unwrap() error { return e.Cause }
