// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/runnerdev/runner/internal/container"
	"github.com/runnerdev/runner/internal/registry"
)

// ContainerAppDir is where the source file is mounted inside the container.
const ContainerAppDir = "/root/app"

type (
	// ContainerOption configures a ContainerRuntime.
	ContainerOption func(*ContainerRuntime)

	// ContainerRuntime executes source files inside disposable containers.
	ContainerRuntime struct {
		engine container.Engine
		io     IO
		tty    bool
	}
)

// WithContainerIO sets the streams attached to the container.
func WithContainerIO(streams IO) ContainerOption {
	return func(r *ContainerRuntime) {
		r.io = streams
	}
}

// WithContainerTTY controls whether the container gets "-it". Enabled by default.
func WithContainerTTY(tty bool) ContainerOption {
	return func(r *ContainerRuntime) {
		r.tty = tty
	}
}

// NewContainerRuntime creates a container executor on top of engine.
func NewContainerRuntime(engine container.Engine, opts ...ContainerOption) *ContainerRuntime {
	r := &ContainerRuntime{engine: engine, tty: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveImage picks the image for req: the override when set, otherwise
// the descriptor default.
func ResolveImage(req Request) (registry.ImageRef, error) {
	if !req.ImageOverride.IsZero() {
		return req.ImageOverride, nil
	}
	if req.Descriptor.HasContainer() {
		return req.Descriptor.Image, nil
	}
	return registry.ImageRef{}, fmt.Errorf("%w: %s", ErrUnsupportedContainerRuntime, req.Descriptor.Language)
}

// ContainerEntrypointPath returns the in-container path of the source file.
func ContainerEntrypointPath(entrypoint string) string {
	return ContainerAppDir + "/" + entrypoint
}

// ContainerCommand builds the shell command run inside the container. Every
// {entrypoint} in the override, or in the descriptor template when there is
// no override, is replaced with the mounted source path.
func ContainerCommand(d registry.Descriptor, override string) (string, error) {
	entrypoint, ok := d.Entrypoint()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContainerRuntime, d.Language)
	}

	template := strings.TrimSpace(override)
	if template == "" {
		template = d.CommandTemplate
	}
	if template == "" {
		return "", fmt.Errorf("%w: %s has no container command", ErrUnsupportedContainerRuntime, d.Language)
	}

	return strings.ReplaceAll(template, registry.EntrypointPlaceholder, ContainerEntrypointPath(entrypoint)), nil
}

// HostMountPath normalizes the host side of the bind mount: absolute paths
// are kept, relative paths get a "./" prefix so the engine does not read
// them as named volumes.
func HostMountPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	slashed := filepath.ToSlash(path)
	if strings.HasPrefix(slashed, "./") || strings.HasPrefix(slashed, "../") {
		return path
	}
	return "." + string(filepath.Separator) + path
}

// Run executes req in a fresh container. It returns *ImageMissingError when
// the image is not present locally; Pull followed by another Run recovers.
func (r *ContainerRuntime) Run(ctx context.Context, req Request) (Outcome, error) {
	image, err := ResolveImage(req)
	if err != nil {
		return Outcome{}, err
	}

	entrypoint, ok := req.Descriptor.Entrypoint()
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnsupportedContainerRuntime, req.Descriptor.Language)
	}

	command, err := ContainerCommand(req.Descriptor, req.CommandOverride)
	if err != nil {
		return Outcome{}, err
	}

	present, err := r.engine.ImageExists(context.WithoutCancel(ctx), image.String())
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to inspect image '%s': %w", image, err)
	}
	if !present {
		return Outcome{}, &ImageMissingError{Image: image}
	}

	opts := container.RunOptions{
		Image:   image.String(),
		Command: []string{"sh", "-c", command},
		Volumes: []container.VolumeMount{{
			HostPath:      HostMountPath(req.Path),
			ContainerPath: ContainerEntrypointPath(entrypoint),
		}},
		Interactive: r.tty,
		TTY:         r.tty,
		Stdin:       orDefault[io.Reader](r.io.Stdin, os.Stdin),
		Stdout:      orDefault[io.Writer](r.io.Stdout, os.Stdout),
		Stderr:      orDefault[io.Writer](r.io.Stderr, os.Stderr),
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.Debug("running container", "engine", r.engine.Name(), "command", quoteArgs(r.engine.Name(), r.engine.RunArgs(opts)))
	}

	start := time.Now()
	res, err := r.engine.Run(context.WithoutCancel(ctx), opts)
	elapsed := time.Since(start)
	if err != nil {
		return Outcome{}, &SpawnError{Command: r.engine.Name(), Err: err}
	}

	return Outcome{Run: elapsed, Image: image, ExitCode: ExitCode(res.ExitCode)}, nil
}

// Pull downloads image. The returned output is the engine's diagnostics.
func (r *ContainerRuntime) Pull(ctx context.Context, image registry.ImageRef) ([]byte, error) {
	out, err := r.engine.Pull(ctx, image.String())
	if err != nil {
		var pullErr *container.PullError
		if errors.As(err, &pullErr) {
			return out, pullErr
		}
		return out, &container.PullError{Image: image.String(), Output: strings.TrimSpace(string(out)), Cause: err}
	}
	return out, nil
}

// quoteArgs renders a command line that can be pasted into a shell.
func quoteArgs(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{name}, args...) {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = a
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " ")
}
