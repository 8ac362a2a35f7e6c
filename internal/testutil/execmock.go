// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	envWantHelper = "GO_WANT_HELPER_PROCESS"
	envExitCode   = "GO_HELPER_EXIT_CODE"
	envStdout     = "GO_HELPER_STDOUT"
	envStderr     = "GO_HELPER_STDERR"
	envEchoEnv    = "GO_HELPER_ECHO_ENV"
	envSleep      = "GO_HELPER_SLEEP"
)

type (
	// CommandRecorder captures the commands a component spawns and replaces
	// them with the test binary running TestHelperProcess.
	CommandRecorder struct {
		mu          sync.Mutex
		invocations []Invocation

		// Default is used for commands without an entry in Responses.
		Default Response
		// Responses is keyed by "name firstArg" or by "name".
		Responses map[string]Response
	}

	// Response configures what a faked command does.
	Response struct {
		ExitCode int
		Stdout   string
		Stderr   string
		// EchoEnv makes the child print the value of this variable to stdout.
		EchoEnv string
		// Sleep delays the child's exit.
		Sleep time.Duration
		// Missing makes the spawn itself fail as if the binary was not installed.
		Missing bool
	}

	// Invocation is a single recorded command.
	Invocation struct {
		Name string
		Args []string
		Cmd  *exec.Cmd
	}
)

// NewCommandRecorder creates a recorder whose commands succeed silently.
func NewCommandRecorder() *CommandRecorder {
	return &CommandRecorder{Responses: make(map[string]Response)}
}

// On sets the response for a command key ("docker inspect" or "node").
func (m *CommandRecorder) On(key string, resp Response) *CommandRecorder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[key] = resp
	return m
}

// CommandFunc returns a replacement for exec.CommandContext.
func (m *CommandRecorder) CommandFunc(t testing.TB) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		resp := m.response(name, args)

		var cmd *exec.Cmd
		if resp.Missing {
			missing := filepath.Join(os.TempDir(), "testutil-missing-binary", filepath.Base(name))
			cmd = exec.CommandContext(ctx, missing, args...)
		} else {
			cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
			//nolint:gosec // TestHelperProcess is a test-only pattern
			cmd = exec.CommandContext(ctx, os.Args[0], cs...)
			cmd.Env = []string{
				envWantHelper + "=1",
				envExitCode + "=" + strconv.Itoa(resp.ExitCode),
				envStdout + "=" + resp.Stdout,
				envStderr + "=" + resp.Stderr,
				envEchoEnv + "=" + resp.EchoEnv,
				envSleep + "=" + resp.Sleep.String(),
			}
		}

		m.mu.Lock()
		m.invocations = append(m.invocations, Invocation{Name: name, Args: slices.Clone(args), Cmd: cmd})
		m.mu.Unlock()
		return cmd
	}
}

func (m *CommandRecorder) response(name string, args []string) Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := filepath.Base(name)
	if len(args) > 0 {
		if r, ok := m.Responses[base+" "+args[0]]; ok {
			return r
		}
	}
	if r, ok := m.Responses[base]; ok {
		return r
	}
	return m.Default
}

// Invocations returns a copy of every recorded command.
func (m *CommandRecorder) Invocations() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.invocations)
}

// Last returns the most recent invocation, or nil if none.
func (m *CommandRecorder) Last() *Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.invocations) == 0 {
		return nil
	}
	inv := m.invocations[len(m.invocations)-1]
	return &inv
}

// AssertInvocationCount verifies the number of spawned commands.
func (m *CommandRecorder) AssertInvocationCount(t testing.TB, expected int) {
	t.Helper()
	if got := len(m.Invocations()); got != expected {
		t.Errorf("expected %d invocations, got %d: %v", expected, got, m.Invocations())
	}
}

// AssertInvocation verifies the name and arguments of the i-th command.
func (m *CommandRecorder) AssertInvocation(t testing.TB, i int, name string, args ...string) {
	t.Helper()
	all := m.Invocations()
	if i >= len(all) {
		t.Fatalf("invocation %d requested, only %d recorded", i, len(all))
	}
	inv := all[i]
	if inv.Name != name || !slices.Equal(inv.Args, args) {
		t.Errorf("invocation %d = %s %q, want %s %q", i, inv.Name, inv.Args, name, args)
	}
}

// String renders an invocation as a single line for failure messages.
func (i Invocation) String() string {
	return strings.TrimSpace(i.Name + " " + strings.Join(i.Args, " "))
}

// HelperProcess is the body of a package's TestHelperProcess. It does nothing
// unless the process was started by a CommandRecorder.
func HelperProcess() {
	if os.Getenv(envWantHelper) != "1" {
		return
	}

	if d, err := time.ParseDuration(os.Getenv(envSleep)); err == nil && d > 0 {
		time.Sleep(d)
	}
	if s := os.Getenv(envStdout); s != "" {
		fmt.Fprint(os.Stdout, s)
	}
	if key := os.Getenv(envEchoEnv); key != "" {
		fmt.Fprint(os.Stdout, os.Getenv(key))
	}
	if s := os.Getenv(envStderr); s != "" {
		fmt.Fprint(os.Stderr, s)
	}

	code, _ := strconv.Atoi(os.Getenv(envExitCode))
	os.Exit(code)
}
