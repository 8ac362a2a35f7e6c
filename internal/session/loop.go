// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"

	"github.com/runnerdev/runner/internal/app/execute"
	"github.com/runnerdev/runner/internal/runtime"
	"github.com/runnerdev/runner/internal/watch"
)

// ClearScreen clears the terminal and moves the cursor to the top-left.
const ClearScreen = "\x1B[2J\x1B[1;1H"

const (
	// Idle waits for the next change notification.
	Idle State = iota
	// Running has one run in flight.
	Running
	// Terminated is final.
	Terminated
)

var (
	// ErrEventsClosed is returned when the notification channel closes.
	ErrEventsClosed = errors.New("change notification channel closed")
	// ErrWatchFailed wraps errors reported by the notification source.
	ErrWatchFailed = errors.New("watch failed")
)

type (
	// State is the position of a Loop in its lifecycle.
	State int32

	// Runner executes one request. A nil outcome with a nil error means
	// the run was skipped. *execute.Orchestrator is the production implementation.
	Runner interface {
		Run(ctx context.Context, req runtime.Request) (*runtime.Outcome, error)
	}

	// Source produces change notifications. *watch.Watcher is the
	// production implementation.
	Source interface {
		Events() <-chan watch.Event
		Errors() <-chan error
	}

	// Option configures a Loop.
	Option func(*Loop)

	// Loop serializes change notifications into runs.
	Loop struct {
		session     *Session
		runner      Runner
		request     runtime.Request
		out         io.Writer
		clear       bool
		recoverable func(error) bool
		state       atomic.Int32
		styles      styles
	}

	styles struct {
		path   lipgloss.Style
		dim    lipgloss.Style
		slower lipgloss.Style
		faster lipgloss.Style
		failed lipgloss.Style
	}
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// WithOutput sets where banners and timings are written (default stderr).
func WithOutput(w io.Writer) Option {
	return func(l *Loop) { l.out = w }
}

// WithClearScreen clears the terminal before each run.
func WithClearScreen(enabled bool) Option {
	return func(l *Loop) { l.clear = enabled }
}

// WithRecoverable overrides which run errors leave the session alive.
func WithRecoverable(fn func(error) bool) Option {
	return func(l *Loop) { l.recoverable = fn }
}

// NewLoop creates a Loop that runs copies of req for s.
func NewLoop(s *Session, runner Runner, req runtime.Request, opts ...Option) *Loop {
	l := &Loop{
		session:     s,
		runner:      runner,
		request:     req,
		out:         os.Stderr,
		recoverable: execute.IsRecoverable,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.styles = newStyles(lipgloss.NewRenderer(l.out))
	return l
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		path:   r.NewStyle().Foreground(lipgloss.Color("11")),
		dim:    r.NewStyle().Faint(true),
		slower: r.NewStyle().Foreground(lipgloss.Color("9")),
		faster: r.NewStyle().Foreground(lipgloss.Color("10")),
		failed: r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// State returns the current lifecycle state. Safe for concurrent use.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Run processes notifications from src until ctx is cancelled or a fatal
// error occurs. Cancellation is only observed between runs. The session is
// torn down before Run returns. A cancelled context is a clean exit.
func (l *Loop) Run(ctx context.Context, src Source) (err error) {
	log := slog.Default().With("session", l.session.ID)
	l.state.Store(int32(Idle))

	defer func() {
		l.state.Store(int32(Terminated))
		fmt.Fprintln(l.out, "🧼 Cleaning up...")
		if tdErr := l.session.Teardown(); tdErr != nil {
			err = errors.Join(err, tdErr)
		}
	}()

	pending := false
	for {
		if pending {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
		} else {
			select {
			case <-ctx.Done():
				return nil
			case werr := <-src.Errors():
				return fmt.Errorf("%w: %w", ErrWatchFailed, werr)
			case e, ok := <-src.Events():
				if !ok {
					return ErrEventsClosed
				}
				if !e.Kind.Triggers() {
					log.Debug("ignoring change notification", "kind", e.Kind.String())
					continue
				}
			}
		}

		l.state.Store(int32(Running))
		runErr := l.runOnce(ctx, log)
		l.state.Store(int32(Idle))

		if runErr != nil {
			if !l.recoverable(runErr) {
				return runErr
			}
			fmt.Fprintln(l.out, l.styles.failed.Render("✖ "+runErr.Error()))
		}

		// Notifications that arrived during the run collapse into one rerun.
		pending = drain(src.Events())
	}
}

func (l *Loop) runOnce(ctx context.Context, log *slog.Logger) error {
	s := l.session
	if l.clear {
		fmt.Fprint(l.out, ClearScreen)
	}
	if s.Runs == 0 {
		fmt.Fprintf(l.out, "🏃 Watching %s for changes...\n\n", l.styles.path.Render(s.Path))
	} else {
		fmt.Fprintf(l.out, "(x%d) Lap! 🏃\n\n", s.Runs+1)
	}

	req := l.request
	req.Path = s.Path
	req.Env = slices.Clone(l.request.Env)

	outcome, err := l.runner.Run(ctx, req)
	s.Runs++
	if err != nil {
		return err
	}
	if outcome == nil {
		log.Debug("run skipped")
		return nil
	}

	elapsed := outcome.Elapsed()
	delta := s.Record(elapsed)

	fmt.Fprintln(l.out)
	fmt.Fprintf(l.out, "🏁 Run taken: %s [%s build, %s run]\n",
		l.styles.dim.Render(elapsed.String()), outcome.Build, outcome.Run)
	if delta.Slower {
		fmt.Fprintf(l.out, "⏱️ Delta: %s\n", l.styles.slower.Render(delta.String()))
	} else {
		fmt.Fprintf(l.out, "⏱️ Delta: %s\n", l.styles.faster.Render(delta.String()))
	}
	if !outcome.ExitCode.IsSuccess() {
		fmt.Fprintf(l.out, "Exit status: %s\n", outcome.ExitCode)
	}

	log.Debug("run finished",
		"run", s.Runs,
		"build", outcome.Build,
		"run_duration", outcome.Run,
		"image", outcome.Image.String(),
		"exit_code", int(outcome.ExitCode))
	return nil
}

// drain empties events without blocking and reports whether any of the
// discarded notifications should start a run.
func drain(events <-chan watch.Event) bool {
	trigger := false
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return trigger
			}
			trigger = trigger || e.Kind.Triggers()
		default:
			return trigger
		}
	}
}
