// SPDX-License-Identifier: MPL-2.0

package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/runnerdev/runner/internal/registry"
)

// ScratchPrefix starts the name of every scratch file.
const ScratchPrefix = "runner-"

// Session is the process-wide state of one watch session. It is owned by
// the Loop goroutine and must not be shared.
type Session struct {
	// ID is a short identifier attached to log records.
	ID string
	// Path is the watched file.
	Path string
	// Scratch is set when the session created Path and must remove it.
	Scratch bool
	// Runs counts completed runs.
	Runs int
	// Last is the total duration of the previous run.
	Last time.Duration
}

// ForPath starts a session for a caller-owned file. The file is never
// removed by the session.
func ForPath(path string) *Session {
	return &Session{ID: newID(), Path: path}
}

// NewScratch creates <dir>/runner-<pid>.<ext> filled with the runtime's
// starter program and starts a session that owns it.
func NewScratch(dir string, d registry.Descriptor) (*Session, error) {
	if !d.Supported() {
		return nil, fmt.Errorf("cannot create scratch file: %w", errUnsupportedScratch)
	}
	if dir == "" {
		dir = os.TempDir()
	}

	path := ScratchPath(dir, os.Getpid(), d.Extension)
	if err := os.WriteFile(path, []byte(d.ScratchTemplate()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	return &Session{ID: newID(), Path: path, Scratch: true}, nil
}

// ScratchPath returns the scratch file name for a process id and extension.
func ScratchPath(dir string, pid int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d.%s", ScratchPrefix, pid, ext))
}

// Teardown removes the scratch file if the session owns one. A scratch file
// that is already gone is not an error.
func (s *Session) Teardown() error {
	if !s.Scratch {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove scratch file: %w", err)
	}
	return nil
}

// Record stores the elapsed time of a finished run and returns the delta
// against the previous one.
func (s *Session) Record(elapsed time.Duration) Delta {
	d := ComputeDelta(s.Last, elapsed)
	s.Last = elapsed
	return d
}

var errUnsupportedScratch = errors.New("runtime has no scratch template")

func newID() string {
	return uuid.NewString()[:8]
}
