// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"

	"golang.org/x/sys/windows"
)

// isFatalFsnotifyError classifies fsnotify errors that indicate the watcher
// is fundamentally broken. ReadDirectoryChangesW has no watch limit, but
// handle exhaustion, a deleted watched directory and a failed notification
// buffer allocation still leave it unusable.
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, windows.ERROR_TOO_MANY_OPEN_FILES) ||
		errors.Is(err, windows.ERROR_INVALID_HANDLE) ||
		errors.Is(err, windows.ERROR_NOT_ENOUGH_MEMORY)
}
