// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/runnerdev/runner/internal/container"
	"github.com/runnerdev/runner/internal/registry"
	"github.com/runnerdev/runner/internal/testutil"
)

func newTestContainer(t *testing.T, rec *testutil.CommandRecorder) *ContainerRuntime {
	t.Helper()
	engine := container.NewDockerEngine(container.WithBinaryPath("docker"), container.WithExecCommand(rec.CommandFunc(t)))
	return NewContainerRuntime(engine, WithContainerIO(IO{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}))
}

func TestContainerCommand(t *testing.T) {
	t.Parallel()

	py := registry.Default().Resolve("py")
	tests := []struct {
		name     string
		d        registry.Descriptor
		override string
		want     string
		wantErr  bool
	}{
		{
			name:     "placeholder substituted",
			d:        py,
			override: "echo start && {entrypoint} && echo done",
			want:     "echo start && /root/app/main.py && echo done",
		},
		{
			name:     "every placeholder substituted",
			d:        py,
			override: "cat {entrypoint}; python3 {entrypoint}",
			want:     "cat /root/app/main.py; python3 /root/app/main.py",
		},
		{name: "template", d: py, want: "python3 /root/app/main.py"},
		{name: "java entry class", d: registry.Default().Resolve("java"), want: "java /root/app/Main.java"},
		{name: "no template", d: registry.Default().Resolve("scala"), wantErr: true},
		{name: "unsupported", d: registry.Unsupported, override: "echo {entrypoint}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ContainerCommand(tt.d, tt.override)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedContainerRuntime) {
					t.Fatalf("error = %v, want ErrUnsupportedContainerRuntime", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ContainerCommand() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ContainerCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveImage(t *testing.T) {
	t.Parallel()

	node := registry.Default().Resolve("js")
	override := registry.MustParseImageRef("node:20-slim")

	got, err := ResolveImage(Request{Descriptor: node})
	if err != nil || got.String() != "node:alpine" {
		t.Errorf("default image = %v, %v", got, err)
	}

	got, err = ResolveImage(Request{Descriptor: node, ImageOverride: override})
	if err != nil || got != override {
		t.Errorf("override image = %v, %v; want %v", got, err, override)
	}

	_, err = ResolveImage(Request{Descriptor: registry.Default().Resolve("ts")})
	if !errors.Is(err, ErrUnsupportedContainerRuntime) {
		t.Errorf("typescript without override: error = %v", err)
	}
}

func TestHostMountPath(t *testing.T) {
	t.Parallel()

	abs := filepath.Join(t.TempDir(), "main.py")
	tests := map[string]string{
		"main.py":     "." + string(filepath.Separator) + "main.py",
		"./main.py":   "./main.py",
		"../x/a.py":   "../x/a.py",
		abs:           abs,
		"src/main.py": "." + string(filepath.Separator) + "src/main.py",
	}
	for in, want := range tests {
		if got := HostMountPath(in); got != want {
			t.Errorf("HostMountPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContainerRun(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	r := newTestContainer(t, rec)

	out, err := r.Run(context.Background(), Request{
		Path:            "main.go",
		Descriptor:      registry.Default().Resolve("go"),
		CommandOverride: "go vet {entrypoint} && go run {entrypoint}",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out.Image.String() != "golang:alpine" || !out.Containerized() {
		t.Errorf("Image = %v", out.Image)
	}
	if out.Build != 0 || out.Run <= 0 {
		t.Errorf("durations = %v/%v", out.Build, out.Run)
	}

	rec.AssertInvocationCount(t, 2)
	rec.AssertInvocation(t, 0, "docker", "inspect", "golang:alpine")
	rec.AssertInvocation(t, 1, "docker",
		"run", "-v", "."+string(filepath.Separator)+"main.go:/root/app/main.go", "-it", "golang:alpine",
		"sh", "-c", "go vet /root/app/main.go && go run /root/app/main.go")
}

func TestContainerRun_ImageOverrideWins(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	out, err := newTestContainer(t, rec).Run(context.Background(), Request{
		Path:          "/w/main.rb",
		Descriptor:    registry.Default().Resolve("rb"),
		ImageOverride: registry.MustParseImageRef("ruby:3.3"),
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out.Image.String() != "ruby:3.3" {
		t.Errorf("Image = %v, want ruby:3.3", out.Image)
	}
	if !slices.Contains(rec.Last().Args, "ruby:3.3") {
		t.Errorf("run args %q do not use the override", rec.Last().Args)
	}
}

func TestContainerRun_ImageMissing(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder().On("docker inspect", testutil.Response{ExitCode: 1})
	_, err := newTestContainer(t, rec).Run(context.Background(), Request{Path: "a.php", Descriptor: registry.Default().Resolve("php")})

	var missing *ImageMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want ImageMissingError", err)
	}
	if missing.Image.String() != "php:alpine" {
		t.Errorf("missing image = %v", missing.Image)
	}
	rec.AssertInvocationCount(t, 1)
}

func TestContainerRun_Unsupported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		image registry.ImageRef
	}{
		{name: "no image"},
		{name: "image override", image: registry.MustParseImageRef("alpine")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := testutil.NewCommandRecorder()
			_, err := newTestContainer(t, rec).Run(context.Background(), Request{
				Path:          "a.txt",
				Descriptor:    registry.Unsupported,
				ImageOverride: tt.image,
			})
			if !errors.Is(err, ErrUnsupportedContainerRuntime) {
				t.Fatalf("error = %v, want ErrUnsupportedContainerRuntime", err)
			}
			rec.AssertInvocationCount(t, 0)
		})
	}
}

func TestContainerRun_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := testutil.NewCommandRecorder()
	out, err := newTestContainer(t, rec).Run(ctx, Request{Path: "a.php", Descriptor: registry.Default().Resolve("php")})
	if err != nil {
		t.Fatalf("Run() error = %v, want the run to finish", err)
	}
	if out.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", out.ExitCode)
	}
	rec.AssertInvocationCount(t, 2)
	rec.AssertInvocation(t, 0, "docker", "inspect", "php:alpine")
}

func TestContainerPull(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder().On("docker pull", testutil.Response{ExitCode: 1, Stderr: "pull access denied"})
	_, err := newTestContainer(t, rec).Pull(context.Background(), registry.MustParseImageRef("private/img"))

	var pullErr *container.PullError
	if !errors.As(err, &pullErr) || pullErr.Output != "pull access denied" {
		t.Fatalf("error = %v, want PullError with engine output", err)
	}
}
