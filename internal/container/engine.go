// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"
)

// ErrEngineNotAvailable is the sentinel error wrapped by EngineNotAvailableError.
var ErrEngineNotAvailable = errors.New("container engine not available")

type (
	// Engine defines the container operations used for disposable runs.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available checks if the engine is available on the system.
		Available() bool
		// ImageExists checks if an image is present locally.
		ImageExists(ctx context.Context, image string) (bool, error)
		// Pull downloads an image and returns the engine's combined output.
		Pull(ctx context.Context, image string) ([]byte, error)
		// Run runs a command in a new container.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// RunArgs builds the argument slice for a 'run' command without executing.
		RunArgs(opts RunOptions) []string
	}

	// RunOptions contains options for running a container.
	RunOptions struct {
		// Image is the image to run.
		Image string
		// Command is the command to run.
		Command []string
		// Volumes are bind mounts.
		Volumes []VolumeMount
		// Interactive keeps stdin open.
		Interactive bool
		// TTY allocates a pseudo-TTY.
		TTY bool

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// RunResult contains the result of running a container. A non-zero exit
	// code is a normal result, not an error.
	RunResult struct {
		ExitCode int
	}

	// EngineType identifies the container engine type.
	EngineType string

	// EngineNotAvailableError is returned when no usable engine is found.
	EngineNotAvailableError struct {
		Engine EngineType
		Reason string
	}
)

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrEngineNotAvailable for errors.Is() compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineNotAvailable }

// ParseEngineType validates an engine name from flags or configuration.
func ParseEngineType(s string) (EngineType, error) {
	switch t := EngineType(strings.ToLower(strings.TrimSpace(s))); t {
	case EngineTypeDocker, EngineTypePodman:
		return t, nil
	case "":
		return EngineTypeDocker, nil
	default:
		return "", fmt.Errorf("unknown container engine type %q (valid: docker, podman)", s)
	}
}

// NewEngine creates a container engine, preferring the given type and
// falling back to the other one.
func NewEngine(preferred EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	docker := func() Engine { return NewDockerEngine(opts...) }
	podman := func() Engine { return NewPodmanEngine(opts...) }

	var order []func() Engine
	switch preferred {
	case EngineTypeDocker:
		order = []func() Engine{docker, podman}
	case EngineTypePodman:
		order = []func() Engine{podman, docker}
	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferred)
	}

	for _, create := range order {
		if engine := create(); engine.Available() {
			return engine, nil
		}
	}

	return nil, &EngineNotAvailableError{
		Engine: preferred,
		Reason: fmt.Sprintf("%s is not installed or not accessible, and the fallback engine is also not available", preferred),
	}
}
