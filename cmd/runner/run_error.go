// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"

	"github.com/runnerdev/runner/internal/app/execute"
	"github.com/runnerdev/runner/internal/container"
	"github.com/runnerdev/runner/internal/issue"
	"github.com/runnerdev/runner/internal/runtime"
	"github.com/runnerdev/runner/internal/session"
	"github.com/runnerdev/runner/internal/watch"
)

// classifyRunError maps a fatal watch session error to an actionable error
// linked to its catalog entry. Errors that are already actionable pass
// through unchanged.
func classifyRunError(err error, path string) error {
	var ae *issue.ActionableError
	if err == nil || errors.As(err, &ae) {
		return err
	}

	ctx := issue.NewErrorContext().WithResource(path)
	switch {
	case errors.Is(err, runtime.ErrRuntimeNotFound):
		ctx.WithOperation("find runtime").
			WithIssue(issue.RuntimeNotFoundId).
			WithSuggestion("Install the toolchain, or drop --no-container to run inside a container")
	case errors.Is(err, runtime.ErrUnsupportedRuntime), errors.Is(err, runtime.ErrUnsupportedContainerRuntime):
		ctx.WithOperation("resolve runtime").
			WithIssue(issue.UnsupportedRuntimeId).
			WithSuggestion("Run 'runner runtimes' to list supported languages")
	case errors.Is(err, container.ErrEngineNotAvailable):
		ctx.WithOperation("run container").
			WithIssue(issue.ContainerEngineNotFoundId).
			WithSuggestion("Install Docker or Podman, or use --no-container")
	case errors.Is(err, execute.ErrPullFailed), errors.Is(err, runtime.ErrImageMissing):
		ctx.WithOperation("install image").
			WithIssue(issue.ImagePullFailedId).
			WithSuggestion("Check the image name and your network connection")
	case errors.Is(err, runtime.ErrInvalidEnv):
		ctx.WithOperation("resolve environment").
			WithIssue(issue.InvalidEnvId)
	case errors.Is(err, session.ErrWatchFailed), errors.Is(err, session.ErrEventsClosed), errors.Is(err, watch.ErrSourceClosed):
		ctx.WithOperation("watch file").
			WithIssue(issue.WatchFailedId)
	default:
		var spawnErr *runtime.SpawnError
		if errors.As(err, &spawnErr) {
			ctx.WithOperation("start process").
				WithSuggestion("Check that the command exists and is executable")
		} else {
			ctx.WithOperation("run file")
		}
	}
	return ctx.Wrap(err).BuildError()
}
