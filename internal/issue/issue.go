// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	RuntimeNotFoundId Id = iota + 1
	UnsupportedRuntimeId
	ContainerEngineNotFoundId
	ImagePullFailedId
	ConfigLoadFailedId
	WatchFailedId
	InvalidEnvId
)

type (
	// Id identifies a catalog entry.
	Id int

	// MarkdownMsg is guidance text rendered in the terminal.
	MarkdownMsg string

	// Issue is a catalog entry with longer, Markdown-formatted guidance.
	Issue struct {
		id    Id
		mdMsg MarkdownMsg
	}
)

// Id returns the catalog id.
func (i *Issue) Id() Id { return i.id }

// MarkdownMsg returns the raw guidance text.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// Render renders the guidance with a glamour style ("dark", "light", "notty", or a path).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	runtimeNotFoundIssue = &Issue{
		id: RuntimeNotFoundId,
		mdMsg: `
# Runtime not found

The interpreter or compiler for this file is not installed, or not on your PATH.

## Things you can try
- Install the toolchain and make sure ` + "`<command> --version`" + ` works
- Run inside a container instead (drop ` + "`--no-container`" + `)
- Pick the executable yourself:
~~~
$ runner main.py --command "python3.12 -u"
~~~`,
	}

	unsupportedRuntimeIssue = &Issue{
		id: UnsupportedRuntimeId,
		mdMsg: `
# Unsupported file type

The file extension does not map to a known runtime.

## Things you can try
- List the supported runtimes:
~~~
$ runner runtimes
~~~
- Tell runner how to execute the file:
~~~
$ runner notes.lua --command lua
~~~`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not available

Neither Docker nor Podman answered, so runs fall back to the host.

## Things you can try
- Start the Docker daemon or install Podman
- Choose the engine explicitly with ` + "`--engine podman`" + `
- Silence this by running with ` + "`--no-container`",
	}

	imagePullFailedIssue = &Issue{
		id: ImagePullFailedId,
		mdMsg: `
# Image pull failed

The container engine could not download the image. The engine output above has the details.

## Things you can try
- Check the image name and tag
- Log in to the registry if the image is private
- Use another image with ` + "`--image`",
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

## Things you can try
- Show the effective configuration:
~~~
$ runner config show
~~~
- Recreate the default file:
~~~
$ runner config init --force
~~~`,
	}

	watchFailedIssue = &Issue{
		id: WatchFailedId,
		mdMsg: `
# File watching failed

The operating system refused to watch the file.

## Things you can try
- Check that the file's directory exists and is readable
- On Linux, raise the inotify limits:
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
$ sudo sysctl fs.inotify.max_user_instances=512
~~~`,
	}

	invalidEnvIssue = &Issue{
		id: InvalidEnvId,
		mdMsg: `
# Invalid environment variable

Environment entries must look like ` + "`KEY=VALUE`" + `.

~~~
$ runner main.js -e NODE_ENV=development -e DEBUG=app:*
~~~`,
	}

	issues = map[Id]*Issue{
		runtimeNotFoundIssue.Id():         runtimeNotFoundIssue,
		unsupportedRuntimeIssue.Id():      unsupportedRuntimeIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		imagePullFailedIssue.Id():         imagePullFailedIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		watchFailedIssue.Id():             watchFailedIssue,
		invalidEnvIssue.Id():              invalidEnvIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return int(a.id) - int(b.id) })
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}

// RenderFor renders the guidance linked to err, if any. It returns an empty
// string when err carries no catalog entry.
func RenderFor(err *ActionableError, stylePath string) string {
	if err == nil || err.Issue == 0 {
		return ""
	}
	entry := Get(err.Issue)
	if entry == nil {
		return ""
	}
	out, renderErr := entry.Render(stylePath)
	if renderErr != nil {
		return strings.TrimSpace(string(entry.mdMsg))
	}
	return out
}
