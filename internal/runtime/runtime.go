// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/runnerdev/runner/internal/registry"
)

type (
	// Request holds the resolved inputs of one run. It is built fresh for
	// every run and never mutated afterwards.
	Request struct {
		// Path is the source file to execute.
		Path string
		// Descriptor is the runtime resolved for Path.
		Descriptor registry.Descriptor
		// CommandOverride replaces the registry-derived command when non-empty.
		CommandOverride string
		// ImageOverride replaces the descriptor's default image when non-zero.
		ImageOverride registry.ImageRef
		// Env is applied on top of the inherited environment of every phase.
		Env []EnvVar
		// NoContainer disables the container path.
		NoContainer bool
	}

	// Outcome is the timing of one run. Either duration may be zero.
	Outcome struct {
		Build time.Duration
		Run   time.Duration
		// Image is the container image used, zero for host runs.
		Image    registry.ImageRef
		ExitCode ExitCode
	}

	// ChildResult is the result of one awaited child process.
	ChildResult struct {
		ExitCode ExitCode
		Duration time.Duration
	}

	// Executor runs a Request to completion.
	Executor interface {
		Run(ctx context.Context, req Request) (Outcome, error)
	}

	// IO holds the streams handed to child processes. Nil streams are
	// replaced by the process's own.
	IO struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// ExitCode represents a process exit status code. The zero value means success.
	ExitCode int
)

// Elapsed returns the total wall time of the run.
func (o Outcome) Elapsed() time.Duration {
	return o.Build + o.Run
}

// Containerized reports whether the run happened inside a container.
func (o Outcome) Containerized() bool {
	return !o.Image.IsZero()
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
