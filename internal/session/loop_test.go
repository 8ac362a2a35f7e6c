// SPDX-License-Identifier: MPL-2.0

package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/runnerdev/runner/internal/app/execute"
	"github.com/runnerdev/runner/internal/registry"
	"github.com/runnerdev/runner/internal/runtime"
	"github.com/runnerdev/runner/internal/testutil"
	"github.com/runnerdev/runner/internal/watch"
)

type (
	fakeSource struct {
		events chan watch.Event
		errs   chan error
	}

	// scriptedRunner returns results in order. When gate is set every run
	// blocks until a value is received from it.
	scriptedRunner struct {
		mu       sync.Mutex
		results  []result
		requests []runtime.Request
		gate     chan struct{}
		started  chan struct{}
		inFlight atomic.Int32
		maxSeen  atomic.Int32
	}

	result struct {
		outcome *runtime.Outcome
		err     error
	}
)

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan watch.Event, watch.Capacity),
		errs:   make(chan error, 1),
	}
}

func (s *fakeSource) Events() <-chan watch.Event { return s.events }
func (s *fakeSource) Errors() <-chan error       { return s.errs }

func (s *fakeSource) send(k watch.Kind) {
	s.events <- watch.Event{Path: "x", Kind: k}
}

func newScriptedRunner(results ...result) *scriptedRunner {
	return &scriptedRunner{results: results, started: make(chan struct{}, 16)}
}

func (r *scriptedRunner) Run(_ context.Context, req runtime.Request) (*runtime.Outcome, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		m := r.maxSeen.Load()
		if n <= m || r.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	r.mu.Lock()
	i := len(r.requests)
	r.requests = append(r.requests, req)
	r.mu.Unlock()

	r.started <- struct{}{}
	if r.gate != nil {
		<-r.gate
	}

	if i < len(r.results) {
		return r.results[i].outcome, r.results[i].err
	}
	return &runtime.Outcome{}, nil
}

func (r *scriptedRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func ok(build, run time.Duration) result {
	return result{outcome: &runtime.Outcome{Build: build, Run: run}}
}

func waitStarted(t *testing.T, r *scriptedRunner) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a run to start")
	}
}

func waitDone(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the loop to return")
		return nil
	}
}

func startLoop(t *testing.T, l *Loop, src Source) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx, src) }()
	return cancel, errCh
}

func TestLoop_DisplaysTimingAndDelta(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner(ok(0, 500*time.Millisecond), ok(100*time.Millisecond, 200*time.Millisecond))
	var out bytes.Buffer
	s := ForPath("main.rs")
	l := NewLoop(s, runner, runtime.Request{}, WithOutput(&out))
	src := newFakeSource()
	cancel, errCh := startLoop(t, l, src)

	src.send(watch.Created)
	waitStarted(t, runner)
	src.send(watch.DataModified)
	waitStarted(t, runner)

	// The in-flight run completes before cancellation is observed.
	cancel()
	if err := waitDone(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"🏃 Watching",
		"main.rs",
		"(x2) Lap! 🏃",
		"[0s build, 500ms run]",
		"+500ms",
		"[100ms build, 200ms run]",
		"-200ms",
		"🧼 Cleaning up...",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if s.Last != 300*time.Millisecond {
		t.Errorf("Last = %v, want 300ms", s.Last)
	}
	if s.Runs != 2 {
		t.Errorf("Runs = %d, want 2", s.Runs)
	}
	if l.State() != Terminated {
		t.Errorf("State() = %v, want terminated", l.State())
	}
}

func TestLoop_SerializesAndCollapsesRuns(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	runner.gate = make(chan struct{})
	l := NewLoop(ForPath("main.go"), runner, runtime.Request{}, WithOutput(&bytes.Buffer{}))
	src := newFakeSource()
	cancel, errCh := startLoop(t, l, src)

	src.send(watch.DataModified)
	waitStarted(t, runner)
	if l.State() != Running {
		t.Errorf("State() = %v, want running", l.State())
	}

	// A burst during the run is not consumed until the run completes.
	for range 3 {
		src.send(watch.DataModified)
	}
	if n := len(src.events); n != 3 {
		t.Errorf("queued events = %d, want 3 while running", n)
	}

	runner.gate <- struct{}{}
	waitStarted(t, runner)
	runner.gate <- struct{}{}

	select {
	case <-runner.started:
		t.Fatal("burst produced more than one rerun")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	if err := waitDone(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := runner.calls(); got != 2 {
		t.Errorf("runs = %d, want 2", got)
	}
	if got := runner.maxSeen.Load(); got != 1 {
		t.Errorf("max concurrent runs = %d, want 1", got)
	}
}

func TestLoop_IgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	l := NewLoop(ForPath("main.go"), runner, runtime.Request{}, WithOutput(&bytes.Buffer{}))
	src := newFakeSource()
	cancel, errCh := startLoop(t, l, src)

	src.send(watch.Other)
	src.send(watch.Other)
	select {
	case <-runner.started:
		t.Fatal("non-triggering event started a run")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	if err := waitDone(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestLoop_RequestIsFreshPerRun(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	s := ForPath("/work/app.py")
	base := runtime.Request{
		Descriptor: registry.Default().Resolve("py"),
		Env:        []runtime.EnvVar{{Key: "A", Value: "1"}},
	}
	l := NewLoop(s, runner, base, WithOutput(&bytes.Buffer{}))
	src := newFakeSource()
	cancel, errCh := startLoop(t, l, src)

	src.send(watch.Created)
	waitStarted(t, runner)
	cancel()
	if err := waitDone(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	req := runner.requests[0]
	if req.Path != s.Path {
		t.Errorf("request path = %q, want %q", req.Path, s.Path)
	}
	req.Env[0].Value = "changed"
	if base.Env[0].Value != "1" {
		t.Error("request env shares storage with the template")
	}
}

func TestLoop_RecoverableErrorKeepsSession(t *testing.T) {
	t.Parallel()

	pullErr := &execute.PullFailedError{
		Image:  registry.MustParseImageRef("python:alpine"),
		Output: "manifest unknown",
		Cause:  errors.New("exit status 1"),
	}
	runner := newScriptedRunner(result{err: pullErr}, ok(0, time.Millisecond))
	var out bytes.Buffer
	s := ForPath("main.py")
	l := NewLoop(s, runner, runtime.Request{}, WithOutput(&out))
	src := newFakeSource()
	cancel, errCh := startLoop(t, l, src)

	src.send(watch.DataModified)
	waitStarted(t, runner)
	src.send(watch.DataModified)
	waitStarted(t, runner)

	cancel()
	if err := waitDone(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "manifest unknown") {
		t.Errorf("pull diagnostics not shown:\n%s", out.String())
	}
}

func TestLoop_DeclinedRunIsSkipped(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner(result{})
	var out bytes.Buffer
	s := ForPath("main.py")
	l := NewLoop(s, runner, runtime.Request{}, WithOutput(&out))
	src := newFakeSource()
	cancel, errCh := startLoop(t, l, src)

	src.send(watch.Created)
	waitStarted(t, runner)
	cancel()
	if err := waitDone(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.Contains(out.String(), "Run taken") {
		t.Errorf("skipped run printed timing:\n%s", out.String())
	}
	if s.Last != 0 {
		t.Errorf("Last = %v, want 0", s.Last)
	}
}

func TestLoop_FatalErrorRemovesScratch(t *testing.T) {
	t.Parallel()

	s, err := NewScratch(t.TempDir(), registry.Default().Resolve("py"))
	if err != nil {
		t.Fatalf("NewScratch() error = %v", err)
	}
	notFound := &runtime.RuntimeNotFoundError{Language: registry.LanguagePython, Command: "python3"}
	runner := newScriptedRunner(result{err: notFound})
	l := NewLoop(s, runner, runtime.Request{}, WithOutput(&bytes.Buffer{}))
	src := newFakeSource()
	_, errCh := startLoop(t, l, src)

	src.send(watch.Created)
	if err := waitDone(t, errCh); !errors.Is(err, runtime.ErrRuntimeNotFound) {
		t.Fatalf("Run() error = %v, want ErrRuntimeNotFound", err)
	}
	if testutil.FileExists(s.Path) {
		t.Error("scratch file survived a fatal error")
	}
}

func TestLoop_CancelRemovesOnlyScratch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	scratch, err := NewScratch(dir, registry.Default().Resolve("go"))
	if err != nil {
		t.Fatalf("NewScratch() error = %v", err)
	}
	caller := ForPath(testutil.MustWriteFile(t, dir, "keep.go", "package main\n"))

	for _, s := range []*Session{scratch, caller} {
		l := NewLoop(s, newScriptedRunner(), runtime.Request{}, WithOutput(&bytes.Buffer{}))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := l.Run(ctx, newFakeSource()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}

	if testutil.FileExists(scratch.Path) {
		t.Error("scratch file survived cancellation")
	}
	if !testutil.FileExists(caller.Path) {
		t.Error("caller file was removed")
	}
}

func TestLoop_WatchErrorIsFatal(t *testing.T) {
	t.Parallel()

	l := NewLoop(ForPath("main.go"), newScriptedRunner(), runtime.Request{}, WithOutput(&bytes.Buffer{}))
	src := newFakeSource()
	boom := errors.New("inotify gone")
	src.errs <- boom

	err := l.Run(context.Background(), src)
	if !errors.Is(err, boom) || !errors.Is(err, ErrWatchFailed) {
		t.Fatalf("Run() error = %v, want %v wrapped in ErrWatchFailed", err, boom)
	}
}

func TestLoop_ClosedSource(t *testing.T) {
	t.Parallel()

	l := NewLoop(ForPath("main.go"), newScriptedRunner(), runtime.Request{}, WithOutput(&bytes.Buffer{}))
	src := newFakeSource()
	close(src.events)

	if err := l.Run(context.Background(), src); !errors.Is(err, ErrEventsClosed) {
		t.Fatalf("Run() error = %v, want ErrEventsClosed", err)
	}
}

func TestLoop_ClearScreen(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	var out bytes.Buffer
	l := NewLoop(ForPath("main.go"), runner, runtime.Request{}, WithOutput(&out), WithClearScreen(true))
	src := newFakeSource()
	cancel, errCh := startLoop(t, l, src)

	src.send(watch.Created)
	waitStarted(t, runner)
	cancel()
	if err := waitDone(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), ClearScreen) {
		t.Errorf("output does not start with clear sequence: %q", out.String())
	}
}
