// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/runnerdev/runner/internal/container"
	"github.com/runnerdev/runner/internal/registry"
	"github.com/runnerdev/runner/internal/runtime"
)

type (
	fakeExecutor struct {
		calls    int
		outcomes []runtime.Outcome
		errs     []error
	}

	fakeContainer struct {
		fakeExecutor
		pulled  []registry.ImageRef
		pullOut []byte
		pullErr error
	}

	fakePrompter struct {
		answer bool
		err    error
		asked  []string
	}

	recordingProgress struct {
		titles []string
	}
)

func (f *fakeExecutor) Run(_ context.Context, _ runtime.Request) (runtime.Outcome, error) {
	i := f.calls
	f.calls++
	var (
		out runtime.Outcome
		err error
	)
	if i < len(f.outcomes) {
		out = f.outcomes[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return out, err
}

func (f *fakeContainer) Pull(_ context.Context, image registry.ImageRef) ([]byte, error) {
	f.pulled = append(f.pulled, image)
	return f.pullOut, f.pullErr
}

func (p *fakePrompter) Confirm(_ context.Context, title string) (bool, error) {
	p.asked = append(p.asked, title)
	return p.answer, p.err
}

func (p *recordingProgress) Track(ctx context.Context, title string, fn func(context.Context) error) error {
	p.titles = append(p.titles, title)
	return fn(ctx)
}

func pythonRequest(t *testing.T) runtime.Request {
	t.Helper()
	return runtime.Request{
		Path:       "main.py",
		Descriptor: registry.Default().Resolve("py"),
	}
}

func TestRun_ContainerPath(t *testing.T) {
	t.Parallel()

	image := registry.MustParseImageRef("python:alpine")
	local := &fakeExecutor{}
	ctr := &fakeContainer{fakeExecutor: fakeExecutor{
		outcomes: []runtime.Outcome{{Run: time.Second, Image: image}},
	}}
	var notices bytes.Buffer
	o := NewOrchestrator(local, WithContainer(ctr), WithNotices(&notices))

	got, err := o.Run(context.Background(), pythonRequest(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got == nil || got.Image != image || got.Build != 0 || got.Run != time.Second {
		t.Errorf("Run() = %+v, want container outcome", got)
	}
	if local.calls != 0 {
		t.Errorf("local executor called %d times", local.calls)
	}
	if notices.Len() != 0 {
		t.Errorf("unexpected notice %q", notices.String())
	}
}

func TestRun_LocalPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		req        func(t *testing.T) runtime.Request
		container  bool
		wantNotice string
	}{
		{
			name: "containerization disabled",
			req: func(t *testing.T) runtime.Request {
				r := pythonRequest(t)
				r.NoContainer = true
				return r
			},
			container:  true,
			wantNotice: "Running without containerization: containerization disabled",
		},
		{
			name: "custom command for unsupported file",
			req: func(t *testing.T) runtime.Request {
				return runtime.Request{Path: "main.lua", Descriptor: registry.Unsupported, CommandOverride: "lua {entrypoint}"}
			},
			container:  true,
			wantNotice: "Running without containerization: no container runtime for custom commands",
		},
		{
			name: "no image for runtime",
			req: func(t *testing.T) runtime.Request {
				return runtime.Request{Path: "main.ts", Descriptor: registry.Default().Resolve("ts")}
			},
			container:  true,
			wantNotice: "Running without containerization: unsupported container runtime 'typescript'",
		},
		{
			name:       "no engine",
			req:        pythonRequest,
			wantNotice: "Running without containerization: no container engine available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			local := &fakeExecutor{outcomes: []runtime.Outcome{{Build: time.Millisecond, Run: 2 * time.Millisecond}}}
			ctr := &fakeContainer{}
			var notices bytes.Buffer
			opts := []Option{WithNotices(&notices)}
			if tt.container {
				opts = append(opts, WithContainer(ctr))
			}
			o := NewOrchestrator(local, opts...)

			got, err := o.Run(context.Background(), tt.req(t))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got == nil || got.Elapsed() != 3*time.Millisecond || got.Containerized() {
				t.Errorf("Run() = %+v, want local outcome", got)
			}
			if ctr.calls != 0 {
				t.Errorf("container executor called %d times", ctr.calls)
			}
			if tt.wantNotice == "" && notices.Len() != 0 {
				t.Errorf("unexpected notice %q", notices.String())
			}
			if tt.wantNotice != "" && !strings.Contains(notices.String(), tt.wantNotice) {
				t.Errorf("notice = %q, want %q", notices.String(), tt.wantNotice)
			}
		})
	}
}

func TestRun_ImageOverrideOpensContainerPath(t *testing.T) {
	t.Parallel()

	image := registry.MustParseImageRef("oven/bun:1")
	local := &fakeExecutor{}
	ctr := &fakeContainer{fakeExecutor: fakeExecutor{outcomes: []runtime.Outcome{{Image: image}}}}
	o := NewOrchestrator(local, WithContainer(ctr), WithNotices(&bytes.Buffer{}))

	req := runtime.Request{
		Path:          "main.ts",
		Descriptor:    registry.Default().Resolve("ts"),
		ImageOverride: image,
	}
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ctr.calls != 1 || local.calls != 0 {
		t.Errorf("container calls = %d, local calls = %d", ctr.calls, local.calls)
	}
}

func TestRun_ImageMissing_Install(t *testing.T) {
	t.Parallel()

	image := registry.MustParseImageRef("python:alpine")
	ctr := &fakeContainer{fakeExecutor: fakeExecutor{
		outcomes: []runtime.Outcome{{}, {Run: time.Second, Image: image}},
		errs:     []error{&runtime.ImageMissingError{Image: image}, nil},
	}}
	prompter := &fakePrompter{answer: true}
	progress := &recordingProgress{}
	var notices bytes.Buffer
	o := NewOrchestrator(&fakeExecutor{},
		WithContainer(ctr), WithPrompter(prompter), WithProgress(progress), WithNotices(&notices))

	got, err := o.Run(context.Background(), pythonRequest(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got == nil || got.Image != image {
		t.Fatalf("Run() = %+v, want retried outcome", got)
	}
	if len(prompter.asked) != 1 || prompter.asked[0] != InstallPrompt {
		t.Errorf("asked = %v", prompter.asked)
	}
	if len(progress.titles) != 1 || progress.titles[0] != PullTitle {
		t.Errorf("progress titles = %v", progress.titles)
	}
	if len(ctr.pulled) != 1 || ctr.pulled[0] != image {
		t.Errorf("pulled = %v", ctr.pulled)
	}
	if ctr.calls != 2 {
		t.Errorf("container runs = %d, want 2", ctr.calls)
	}
	if !strings.Contains(notices.String(), "Image not installed: 'python:alpine'") {
		t.Errorf("notices = %q", notices.String())
	}
}

func TestRun_ImageMissing_Declined(t *testing.T) {
	t.Parallel()

	image := registry.MustParseImageRef("python:alpine")
	ctr := &fakeContainer{fakeExecutor: fakeExecutor{
		errs: []error{&runtime.ImageMissingError{Image: image}},
	}}
	o := NewOrchestrator(&fakeExecutor{},
		WithContainer(ctr), WithPrompter(&fakePrompter{answer: false}), WithNotices(&bytes.Buffer{}))

	got, err := o.Run(context.Background(), pythonRequest(t))
	if err != nil || got != nil {
		t.Fatalf("Run() = %v, %v; want nil, nil", got, err)
	}
	if len(ctr.pulled) != 0 || ctr.calls != 1 {
		t.Errorf("pulled = %v, runs = %d", ctr.pulled, ctr.calls)
	}
}

func TestRun_ImageMissing_PullFails(t *testing.T) {
	t.Parallel()

	image := registry.MustParseImageRef("python:alpine")
	cause := &container.PullError{Image: image.String(), Output: "manifest unknown", Cause: errors.New("exit status 1")}
	ctr := &fakeContainer{
		fakeExecutor: fakeExecutor{errs: []error{&runtime.ImageMissingError{Image: image}}},
		pullOut:      []byte("manifest unknown\n"),
		pullErr:      cause,
	}
	o := NewOrchestrator(&fakeExecutor{},
		WithContainer(ctr), WithPrompter(&fakePrompter{answer: true}), WithNotices(&bytes.Buffer{}))

	got, err := o.Run(context.Background(), pythonRequest(t))
	if got != nil {
		t.Errorf("Run() outcome = %+v, want nil", got)
	}
	if !errors.Is(err, ErrPullFailed) {
		t.Fatalf("Run() error = %v, want ErrPullFailed", err)
	}
	if !IsRecoverable(err) {
		t.Error("pull failure should be recoverable")
	}
	var pullErr *PullFailedError
	if !errors.As(err, &pullErr) || pullErr.Output != "manifest unknown" {
		t.Errorf("pull error = %#v", err)
	}
	if ctr.calls != 1 {
		t.Errorf("container runs = %d, want no retry", ctr.calls)
	}
}

func TestRun_ImageMissing_NoPrompter(t *testing.T) {
	t.Parallel()

	image := registry.MustParseImageRef("python:alpine")
	ctr := &fakeContainer{fakeExecutor: fakeExecutor{errs: []error{&runtime.ImageMissingError{Image: image}}}}
	o := NewOrchestrator(&fakeExecutor{}, WithContainer(ctr), WithNotices(&bytes.Buffer{}))

	_, err := o.Run(context.Background(), pythonRequest(t))
	if !errors.Is(err, runtime.ErrImageMissing) {
		t.Fatalf("Run() error = %v, want ErrImageMissing", err)
	}
	if !IsRecoverable(err) {
		t.Error("missing image should be recoverable")
	}
}

func TestRun_PrompterError(t *testing.T) {
	t.Parallel()

	image := registry.MustParseImageRef("python:alpine")
	boom := errors.New("tty gone")
	ctr := &fakeContainer{fakeExecutor: fakeExecutor{errs: []error{&runtime.ImageMissingError{Image: image}}}}
	o := NewOrchestrator(&fakeExecutor{},
		WithContainer(ctr), WithPrompter(&fakePrompter{err: boom}), WithNotices(&bytes.Buffer{}))

	_, err := o.Run(context.Background(), pythonRequest(t))
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if IsRecoverable(err) {
		t.Error("prompt failure should not be recoverable")
	}
}

func TestRun_ErrorsPropagate(t *testing.T) {
	t.Parallel()

	boom := &runtime.RuntimeNotFoundError{Language: registry.LanguagePython, Command: "python3"}
	o := NewOrchestrator(&fakeExecutor{errs: []error{boom}}, WithNotices(&bytes.Buffer{}))

	req := pythonRequest(t)
	req.NoContainer = true
	got, err := o.Run(context.Background(), req)
	if got != nil || !errors.Is(err, runtime.ErrRuntimeNotFound) {
		t.Fatalf("Run() = %v, %v", got, err)
	}
	if IsRecoverable(err) {
		t.Error("runtime not found should be fatal")
	}
}
