// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func startWatcher(t *testing.T, path string) *Watcher {
	t.Helper()

	w, err := New(path)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { w.Close() }) //nolint:errcheck // test cleanup

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	return w
}

// waitFor returns the first event of one of the wanted kinds.
func waitFor(t *testing.T, w *Watcher, kinds ...Kind) Event {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-w.Events():
			for _, k := range kinds {
				if e.Kind == k {
					return e
				}
			}
		case err := <-w.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-timeout:
			t.Fatalf("timed out waiting for %v", kinds)
		}
	}
}

func TestWatcher_CreateAndModify(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "main.py")
	w := startWatcher(t, target)

	if err := os.WriteFile(target, []byte("print(1)\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	e := waitFor(t, w, Created)
	if e.Path != w.Path() {
		t.Errorf("event path = %q, want %q", e.Path, w.Path())
	}

	f, err := os.OpenFile(target, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("print(2)\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close() //nolint:errcheck // test

	waitFor(t, w, DataModified)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "main.go")
	w := startWatcher(t, target)

	if err := os.WriteFile(filepath.Join(dir, "other.go"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	select {
	case e := <-w.Events():
		t.Fatalf("unexpected event for sibling: %+v", e)
	case <-time.After(200 * time.Millisecond):
	}

	if err := os.WriteFile(target, []byte("package main"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}
	waitFor(t, w, Created, DataModified)
}

func TestWatcher_StartTwice(t *testing.T) {
	t.Parallel()

	w := startWatcher(t, filepath.Join(t.TempDir(), "a.rb"))
	if err := w.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestWatcher_CloseIsQuiet(t *testing.T) {
	t.Parallel()

	w := startWatcher(t, filepath.Join(t.TempDir(), "a.rb"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	select {
	case err := <-w.Errors():
		t.Errorf("unexpected error after Close: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	t.Parallel()

	if _, err := New(filepath.Join(t.TempDir(), "missing", "main.py")); err == nil {
		t.Fatal("New() expected error for missing directory")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   fsnotify.Op
		want Kind
	}{
		{fsnotify.Create, Created},
		{fsnotify.Write, DataModified},
		{fsnotify.Create | fsnotify.Write, Created},
		{fsnotify.Remove, Other},
		{fsnotify.Rename, Other},
		{fsnotify.Chmod, Other},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			t.Parallel()
			if got := classify(fsnotify.Event{Name: "x", Op: tt.op}); got != tt.want {
				t.Errorf("classify(%v) = %v, want %v", tt.op, got, tt.want)
			}
		})
	}
}

func TestKind_Triggers(t *testing.T) {
	t.Parallel()

	if !Created.Triggers() || !DataModified.Triggers() || Other.Triggers() {
		t.Error("only created and data-modified events should trigger a run")
	}
}
