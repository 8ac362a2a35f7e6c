// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/runnerdev/runner/internal/registry"
)

// ArtifactSuffix is appended to the source stem to name compiled artifacts.
const ArtifactSuffix = "-runner-build"

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// CommandResolver finds the host executable for a runtime.
	// *probe.Prober is the production implementation.
	CommandResolver interface {
		ResolveCommand(ctx context.Context, d registry.Descriptor) (string, error)
	}

	// NativeOption configures a NativeRuntime.
	NativeOption func(*NativeRuntime)

	// NativeRuntime executes source files with host toolchains.
	NativeRuntime struct {
		resolver    CommandResolver
		execCommand ExecCommandFunc
		io          IO
		tempDir     string
	}
)

// WithNativeExecCommand sets a custom exec command function for testing.
func WithNativeExecCommand(fn ExecCommandFunc) NativeOption {
	return func(r *NativeRuntime) {
		r.execCommand = fn
	}
}

// WithNativeIO sets the streams handed to child processes.
func WithNativeIO(streams IO) NativeOption {
	return func(r *NativeRuntime) {
		r.io = streams
	}
}

// WithTempDir sets the directory compiled artifacts are written to.
func WithTempDir(dir string) NativeOption {
	return func(r *NativeRuntime) {
		r.tempDir = dir
	}
}

// NewNativeRuntime creates a host executor.
func NewNativeRuntime(resolver CommandResolver, opts ...NativeOption) *NativeRuntime {
	r := &NativeRuntime{
		resolver:    resolver,
		execCommand: exec.CommandContext,
		tempDir:     os.TempDir(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ArtifactPath returns the compiled artifact location for a source file:
// <dir>/<stem>-runner-build.
func ArtifactPath(dir, source string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+ArtifactSuffix)
}

// SplitOverride turns a user command override into an executable and its
// arguments, with the source path appended last. An override containing
// whitespace is split on runs of whitespace; quotes are not interpreted.
// An override without whitespace is the executable itself.
func SplitOverride(override, path string) (name string, args []string) {
	fields := strings.Fields(override)
	if len(fields) == 0 {
		return "", nil
	}
	args = append(slices.Clone(fields[1:]), path)
	return fields[0], args
}

// Run executes req on the host. Phases are awaited synchronously. A non-zero
// exit is reported in the Outcome; a failed compile skips the run phase.
func (r *NativeRuntime) Run(ctx context.Context, req Request) (Outcome, error) {
	if override := strings.TrimSpace(req.CommandOverride); override != "" {
		name, args := SplitOverride(override, req.Path)
		res, err := r.spawn(ctx, name, args, req.Env)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Run: res.Duration, ExitCode: res.ExitCode}, nil
	}

	d := req.Descriptor
	if !d.Supported() {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnsupportedRuntime, filepath.Base(req.Path))
	}

	command, err := r.resolver.ResolveCommand(ctx, d)
	if err != nil {
		slog.Debug("runtime resolution failed", "language", d.Language, "error", err)
		return Outcome{}, &RuntimeNotFoundError{Language: d.Language, Command: d.HostCommand}
	}

	if d.Compiled {
		return r.buildAndRun(ctx, req, command)
	}

	args := append(slices.Clone(d.RunArgs), req.Path)
	res, err := r.spawn(ctx, command, args, req.Env)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Run: res.Duration, ExitCode: res.ExitCode}, nil
}

func (r *NativeRuntime) buildAndRun(ctx context.Context, req Request, compiler string) (Outcome, error) {
	artifact := ArtifactPath(r.tempDir, req.Path)

	// Concurrent sessions compiling sources with the same stem share the artifact.
	lock := flock.New(artifact + ".lock")
	if err := lock.Lock(); err != nil {
		return Outcome{}, fmt.Errorf("failed to lock build artifact %s: %w", artifact, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Debug("build lock release failed", "path", lock.Path(), "error", err)
		}
	}()

	build, err := r.spawn(ctx, compiler, req.Descriptor.ExpandBuildArgs(req.Path, artifact), req.Env)
	if err != nil {
		return Outcome{}, err
	}
	if !build.ExitCode.IsSuccess() {
		return Outcome{Build: build.Duration, ExitCode: build.ExitCode}, nil
	}

	run, err := r.spawn(ctx, artifact, nil, req.Env)
	if err != nil {
		return Outcome{Build: build.Duration}, err
	}
	return Outcome{Build: build.Duration, Run: run.Duration, ExitCode: run.ExitCode}, nil
}

// spawn runs one child to completion. The child is not tied to ctx
// cancellation: an interrupt lets the current run finish.
func (r *NativeRuntime) spawn(ctx context.Context, name string, args []string, env []EnvVar) (ChildResult, error) {
	cmd := r.execCommand(context.WithoutCancel(ctx), name, args...)
	cmd.Env = mergeEnv(cmd.Env, env)
	cmd.Stdin = orDefault[io.Reader](r.io.Stdin, os.Stdin)
	cmd.Stdout = orDefault[io.Writer](r.io.Stdout, os.Stdout)
	cmd.Stderr = orDefault[io.Writer](r.io.Stderr, os.Stderr)

	slog.Debug("spawning", "command", name, "args", args)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ChildResult{ExitCode: ExitCode(exitErr.ExitCode()), Duration: elapsed}, nil
		}
		return ChildResult{}, &SpawnError{Command: name, Err: err}
	}
	return ChildResult{Duration: elapsed}, nil
}

func orDefault[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}
