// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/runnerdev/runner/internal/app/execute"
	"github.com/runnerdev/runner/internal/container"
	"github.com/runnerdev/runner/internal/issue"
	"github.com/runnerdev/runner/internal/registry"
	"github.com/runnerdev/runner/internal/runtime"
	"github.com/runnerdev/runner/internal/session"
)

func TestClassifyRunError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantOp    string
		wantIssue issue.Id
	}{
		{
			name:      "runtime not found",
			err:       &runtime.RuntimeNotFoundError{Language: registry.LanguagePython, Command: "python3"},
			wantOp:    "find runtime",
			wantIssue: issue.RuntimeNotFoundId,
		},
		{
			name:      "unsupported runtime",
			err:       fmt.Errorf("%w: main.lua", runtime.ErrUnsupportedRuntime),
			wantOp:    "resolve runtime",
			wantIssue: issue.UnsupportedRuntimeId,
		},
		{
			name:      "engine unavailable",
			err:       &container.EngineNotAvailableError{Engine: container.EngineTypeDocker, Reason: "not installed"},
			wantOp:    "run container",
			wantIssue: issue.ContainerEngineNotFoundId,
		},
		{
			name:      "pull failed",
			err:       &execute.PullFailedError{Image: registry.MustParseImageRef("nope:1"), Cause: errors.New("denied")},
			wantOp:    "install image",
			wantIssue: issue.ImagePullFailedId,
		},
		{
			name:      "watch failed",
			err:       fmt.Errorf("%w: %w", session.ErrWatchFailed, errors.New("inotify")),
			wantOp:    "watch file",
			wantIssue: issue.WatchFailedId,
		},
		{
			name:      "events closed",
			err:       session.ErrEventsClosed,
			wantOp:    "watch file",
			wantIssue: issue.WatchFailedId,
		},
		{
			name:   "spawn",
			err:    &runtime.SpawnError{Command: "node", Err: errors.New("exec format error")},
			wantOp: "start process",
		},
		{
			name:   "other",
			err:    errors.New("boom"),
			wantOp: "run file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := classifyRunError(tt.err, "/work/main.py")
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("classifyRunError() = %T, want ActionableError", err)
			}
			if ae.Operation != tt.wantOp || ae.Issue != tt.wantIssue || ae.Resource != "/work/main.py" {
				t.Errorf("classifyRunError() = %+v, want operation %q issue %d", ae, tt.wantOp, tt.wantIssue)
			}
			if !errors.Is(err, tt.err) {
				t.Error("cause lost")
			}
		})
	}
}

func TestClassifyRunError_PassesThrough(t *testing.T) {
	t.Parallel()

	if classifyRunError(nil, "x") != nil {
		t.Error("classifyRunError(nil) != nil")
	}

	ae := issue.NewErrorContext().WithOperation("watch file").BuildError()
	if got := classifyRunError(ae, "x"); got != ae {
		t.Errorf("classifyRunError() = %v, want unchanged", got)
	}
}
