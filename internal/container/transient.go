// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// IsTransientError reports whether a failed engine command may succeed on
// retry: registry network failures and generic engine errors (exit 125).
// Context cancellation is never transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 125 {
		return true
	}

	errStr := err.Error()
	for _, marker := range []string{
		"TLS handshake timeout",
		"Temporary failure resolving",
		"Could not resolve host",
		"connection timed out",
		"connection refused",
		"connection reset by peer",
		"i/o timeout",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}

	return false
}
