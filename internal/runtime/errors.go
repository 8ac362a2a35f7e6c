// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"

	"github.com/runnerdev/runner/internal/registry"
)

var (
	// ErrUnsupportedRuntime is returned when the file's extension maps to no runtime.
	ErrUnsupportedRuntime = errors.New("unsupported runtime")

	// ErrUnsupportedContainerRuntime is returned when the runtime has no
	// image, entrypoint or command for containerized execution.
	ErrUnsupportedContainerRuntime = errors.New("unsupported runtime for containerized execution")

	// ErrRuntimeNotFound is the sentinel error wrapped by RuntimeNotFoundError.
	ErrRuntimeNotFound = errors.New("runtime not found")

	// ErrImageMissing is the sentinel error wrapped by ImageMissingError.
	ErrImageMissing = errors.New("image not installed")

	// ErrInvalidEnv is the sentinel error wrapped by InvalidEnvError.
	ErrInvalidEnv = errors.New("invalid environment entry")
)

type (
	// RuntimeNotFoundError is returned when no host executable responds.
	RuntimeNotFoundError struct {
		Language registry.Language
		Command  string
	}

	// ImageMissingError is returned by the container executor when the image
	// is not present locally. Callers may pull it and retry.
	ImageMissingError struct {
		Image registry.ImageRef
	}

	// SpawnError is returned when a child process could not be started.
	SpawnError struct {
		Command string
		Err     error
	}

	// InvalidEnvError is returned for an environment entry without '='.
	InvalidEnvError struct {
		Entry string
	}
)

// Error implements the error interface.
func (e *RuntimeNotFoundError) Error() string {
	return fmt.Sprintf("%s runtime not found: is '%s' installed and on PATH?", e.Language, e.Command)
}

// Unwrap returns ErrRuntimeNotFound for errors.Is() compatibility.
func (e *RuntimeNotFoundError) Unwrap() error { return ErrRuntimeNotFound }

// Error implements the error interface.
func (e *ImageMissingError) Error() string {
	return fmt.Sprintf("image '%s' is not installed", e.Image)
}

// Unwrap returns ErrImageMissing for errors.Is() compatibility.
func (e *ImageMissingError) Unwrap() error { return ErrImageMissing }

// Error implements the error interface.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start '%s': %v", e.Command, e.Err)
}

// Unwrap returns the underlying exec error.
func (e *SpawnError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *InvalidEnvError) Error() string {
	return fmt.Sprintf("invalid environment entry %q: expected KEY=VALUE", e.Entry)
}

// Unwrap returns ErrInvalidEnv for errors.Is() compatibility.
func (e *InvalidEnvError) Unwrap() error { return ErrInvalidEnv }
