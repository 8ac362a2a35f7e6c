// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isFatalFsnotifyError classifies fsnotify errors that indicate the watcher
// is fundamentally broken and cannot recover:
//   - ENOSPC: inotify watch limit exceeded (fs.inotify.max_user_watches)
//   - EMFILE: per-process file descriptor limit exceeded
//   - ENFILE: system-wide file descriptor limit exceeded
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, unix.ENOSPC) ||
		errors.Is(err, unix.EMFILE) ||
		errors.Is(err, unix.ENFILE)
}
