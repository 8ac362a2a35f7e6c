// SPDX-License-Identifier: MPL-2.0

// Package watch reports changes to a single file.
//
// The parent directory is watched rather than the file itself so editors that
// save by writing a temporary file and renaming it over the target keep
// producing events. Events for other files in the directory are dropped.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Capacity is the size of the event channel. The forwarding goroutine blocks
// when it is full.
const Capacity = 10

const (
	// Other covers renames, removals and attribute changes.
	Other Kind = iota
	// Created means the file was created, including a rename over it.
	Created
	// DataModified means the file's content was written.
	DataModified
)

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("watch: already started")

	// ErrSourceClosed is reported when fsnotify closes its channels.
	ErrSourceClosed = errors.New("watch: event source closed unexpectedly")
)

type (
	// Kind classifies a change notification.
	Kind int

	// Event is one change notification for the watched file.
	Event struct {
		Path string
		Kind Kind
	}

	// Watcher delivers change notifications for one file.
	Watcher struct {
		fsw     *fsnotify.Watcher
		target  string
		events  chan Event
		errors  chan error
		started atomic.Bool
		done    chan struct{}
		close   sync.Once
	}
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case DataModified:
		return "data-modified"
	default:
		return "other"
	}
}

// Triggers reports whether the kind should start a run.
func (k Kind) Triggers() bool {
	return k == Created || k == DataModified
}

// New creates a Watcher for path. The file's directory must exist; the file
// itself may not exist yet.
func New(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve path: %w", err)
	}

	dir := filepath.Dir(abs)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch: stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %q is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("watch: add directory %q: %w", dir, err)
	}

	return &Watcher{
		fsw:    fsw,
		target: abs,
		events: make(chan Event, Capacity),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}, nil
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string { return w.target }

// Events returns the channel of change notifications.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns the channel on which a fatal watcher error is reported.
// At most one error is sent; the watcher stops forwarding afterwards.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Start begins forwarding events on a separate goroutine until ctx is
// cancelled, Close is called, or a fatal error occurs.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go w.forward(ctx)
	return nil
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	var err error
	w.close.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case evt, ok := <-w.fsw.Events:
			if !ok {
				w.fail(ErrSourceClosed)
				return
			}
			if filepath.Clean(evt.Name) != w.target {
				continue
			}

			e := Event{Path: w.target, Kind: classify(evt)}
			slog.Debug("watch event", "path", e.Path, "kind", e.Kind.String(), "op", evt.Op.String())

			select {
			case w.events <- e:
			case <-ctx.Done():
				return
			case <-w.done:
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.fail(ErrSourceClosed)
				return
			}
			// isFatalFsnotifyError is platform-specific (see watcher_fatal_*.go).
			if isFatalFsnotifyError(err) {
				w.fail(fmt.Errorf("watch: fatal fsnotify error: %w", err))
				return
			}
			slog.Warn("watch: fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) fail(err error) {
	select {
	case <-w.done:
		// Closed on purpose, so the source channels closing is expected.
		return
	default:
	}
	select {
	case w.errors <- err:
	default:
	}
}

func classify(evt fsnotify.Event) Kind {
	switch {
	case evt.Has(fsnotify.Create):
		return Created
	case evt.Has(fsnotify.Write):
		return DataModified
	default:
		return Other
	}
}
