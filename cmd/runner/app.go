// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/runnerdev/runner/internal/app/execute"
	"github.com/runnerdev/runner/internal/config"
	"github.com/runnerdev/runner/internal/container"
	"github.com/runnerdev/runner/internal/issue"
	"github.com/runnerdev/runner/internal/logging"
	"github.com/runnerdev/runner/internal/probe"
	"github.com/runnerdev/runner/internal/registry"
	"github.com/runnerdev/runner/internal/runtime"
	"github.com/runnerdev/runner/internal/session"
	"github.com/runnerdev/runner/internal/tui"
	"github.com/runnerdev/runner/internal/watch"
)

// DefaultScratchRuntime is the language of the scratch file when neither a
// path nor --runtime is given.
const DefaultScratchRuntime = registry.LanguageTypeScript

type (
	// app is the composition root of the CLI. Command handlers receive an
	// app and reach every collaborator through it; tests replace fields.
	app struct {
		config    config.Provider
		configDir string
		registry  *registry.Registry
		stdin     io.Reader
		stdout    io.Writer
		stderr    io.Writer
		scratch   string
		newEngine func(container.EngineType) (container.Engine, error)
		prompter  interactive
	}

	// interactive asks before pulling and shows pull progress.
	interactive interface {
		execute.Prompter
		execute.Progress
	}

	// plan is everything resolved before the first run.
	plan struct {
		session *session.Session
		request runtime.Request
		config  *config.Config
		engine  container.EngineType
	}
)

func newApp() *app {
	return &app{
		config:   config.NewProvider(),
		registry: registry.Default(),
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		scratch:  os.TempDir(),
		newEngine: func(t container.EngineType) (container.Engine, error) {
			return container.NewEngine(t)
		},
		prompter: tui.NewPrompter(tui.DefaultConfig()),
	}
}

// watch resolves the session and request, then re-runs the file on every
// change until ctx is cancelled.
func (a *app) watch(ctx context.Context, flags *rootFlags, args []string) error {
	p, err := a.prepare(ctx, flags, args)
	if err != nil {
		return err
	}

	w, err := watch.New(p.session.Path)
	if err != nil {
		return errors.Join(watchError(p.session.Path, err), p.session.Teardown())
	}
	defer w.Close()

	if err := w.Start(ctx); err != nil {
		return errors.Join(watchError(p.session.Path, err), p.session.Teardown())
	}

	loop := session.NewLoop(p.session, a.orchestrator(p), p.request,
		session.WithOutput(a.stderr),
		session.WithClearScreen(p.config.ClearScreen))

	if err := loop.Run(ctx, w); err != nil {
		return classifyRunError(err, p.session.Path)
	}
	return nil
}

// prepare loads the configuration, sets up logging and resolves the watched
// file and the request template. A scratch file created here is removed
// again when a later step fails.
func (a *app) prepare(ctx context.Context, flags *rootFlags, args []string) (_ *plan, err error) {
	cfg, err := a.config.Load(ctx, a.loadOptions(flags))
	if err != nil {
		return nil, err
	}
	flags.verbose = flags.verbose || cfg.UI.Verbose
	logging.Setup(a.stderr, flags.verbose)

	engineName := flags.engine
	if engineName == "" {
		engineName = string(cfg.ContainerEngine)
	}
	engineType, err := container.ParseEngineType(engineName)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("select container engine").
			WithResource(engineName).
			WithIssue(issue.ContainerEngineNotFoundId).
			WithSuggestion("Use --engine docker or --engine podman").
			Wrap(err).
			BuildError()
	}

	s, err := a.openSession(flags, args)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, s.Teardown())
		}
	}()

	req, err := a.buildRequest(flags, cfg, s.Path)
	if err != nil {
		return nil, err
	}

	slog.Debug("session prepared",
		"session", s.ID,
		"path", s.Path,
		"scratch", s.Scratch,
		"language", req.Descriptor.Language,
		"image", req.ImageOverride.String(),
		"no_container", req.NoContainer)

	return &plan{session: s, request: req, config: cfg, engine: engineType}, nil
}

// loadOptions returns the config lookup for flags. An empty configDir
// means the platform default.
func (a *app) loadOptions(flags *rootFlags) config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: flags.configPath, ConfigDirPath: a.configDir}
}

// openSession watches the given path, or creates a scratch file for
// --runtime when no path is given.
func (a *app) openSession(flags *rootFlags, args []string) (*session.Session, error) {
	if len(args) > 0 {
		if flags.runtime != "" {
			fmt.Fprintln(a.stderr, WarningStyle.Render("🚨 Both path and runtime are provided, ignoring runtime"))
		}

		path, err := filepath.Abs(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path '%s': %w", args[0], err)
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			if err == nil {
				err = fmt.Errorf("'%s' is a directory", args[0])
			}
			return nil, issue.NewErrorContext().
				WithOperation("open source file").
				WithResource(args[0]).
				WithSuggestion("Check the path, or omit it to start from a scratch file").
				Wrap(err).
				BuildError()
		}
		return session.ForPath(path), nil
	}

	lang := flags.runtime
	if lang == "" {
		lang = string(DefaultScratchRuntime)
	}
	d, err := a.registry.Lookup(lang)
	if err != nil {
		return nil, unsupportedError(lang, err)
	}
	return session.NewScratch(a.scratch, d)
}

// buildRequest resolves the runtime for path and merges environment and
// image settings. Environment entries apply in order: env files, config,
// then --env. The --image and --no-container flags win over the config.
func (a *app) buildRequest(flags *rootFlags, cfg *config.Config, path string) (runtime.Request, error) {
	d := a.registry.ResolvePath(path)
	command := strings.TrimSpace(flags.command)
	if !d.Supported() && command == "" {
		return runtime.Request{}, unsupportedError(filepath.Ext(path), runtime.ErrUnsupportedRuntime)
	}

	env, err := runtime.LoadEnvFiles(flags.envFiles)
	if err != nil {
		return runtime.Request{}, envError(err)
	}
	for _, entries := range [][]string{cfg.Env, flags.env} {
		vars, err := runtime.ParseEnv(entries)
		if err != nil {
			return runtime.Request{}, envError(err)
		}
		env = append(env, vars...)
	}

	var image registry.ImageRef
	if flags.image != "" {
		if image, err = registry.ParseImageRef(flags.image); err != nil {
			return runtime.Request{}, issue.NewErrorContext().
				WithOperation("parse image reference").
				WithResource(flags.image).
				WithSuggestion("Image references look like 'repository:tag', e.g. 'python:3.13-slim'").
				Wrap(err).
				BuildError()
		}
	} else if d.Supported() {
		image, _ = cfg.ImageFor(d.Language)
	}

	noContainer := flags.noContainer || cfg.NoContainer
	if flags.noContainerSet {
		noContainer = flags.noContainer
	}

	return runtime.Request{
		Path:            path,
		Descriptor:      d,
		CommandOverride: command,
		ImageOverride:   image,
		Env:             env,
		NoContainer:     noContainer,
	}, nil
}

// orchestrator wires the host and container executors. A missing container
// engine is not an error: runs fall back to the host with a notice.
// Containers get a TTY only when stdin is a terminal.
func (a *app) orchestrator(p *plan) *execute.Orchestrator {
	streams := runtime.IO{Stdin: a.stdin, Stdout: a.stdout, Stderr: a.stderr}
	local := runtime.NewNativeRuntime(probe.New(), runtime.WithNativeIO(streams))

	opts := []execute.Option{
		execute.WithNotices(a.stderr),
		execute.WithPrompter(a.prompter),
		execute.WithProgress(a.prompter),
	}
	if !p.request.NoContainer {
		if engine := a.engine(p.engine); engine != nil {
			opts = append(opts, execute.WithContainer(
				runtime.NewContainerRuntime(engine,
					runtime.WithContainerIO(streams),
					runtime.WithContainerTTY(isTerminal(a.stdin)))))
		}
	}
	return execute.NewOrchestrator(local, opts...)
}

// engine returns the preferred container engine, falling back to the
// other one, or nil when neither docker nor podman is usable.
func (a *app) engine(preferred container.EngineType) container.Engine {
	engine, err := a.newEngine(preferred)
	if err != nil {
		slog.Warn("container engine unavailable", "engine", preferred, "error", err)
		return nil
	}
	slog.Debug("using container engine", "engine", engine.Name())
	return engine
}

func unsupportedError(what string, err error) error {
	return issue.NewErrorContext().
		WithOperation("resolve runtime").
		WithResource(what).
		WithIssue(issue.UnsupportedRuntimeId).
		WithSuggestion("Run 'runner runtimes' to list supported languages and extensions").
		WithSuggestion("Use --command to run the file with a tool of your choice").
		Wrap(err).
		BuildError()
}

func envError(err error) error {
	return issue.NewErrorContext().
		WithOperation("resolve environment").
		WithIssue(issue.InvalidEnvId).
		WithSuggestion("Environment entries look like KEY=VALUE").
		Wrap(err).
		BuildError()
}

func watchError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("watch file").
		WithResource(path).
		WithIssue(issue.WatchFailedId).
		WithSuggestion("Make sure the file's directory exists and is readable").
		Wrap(err).
		BuildError()
}
