// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// EntrypointPlaceholder is replaced by the in-container source path in
// container command templates and user command overrides.
const EntrypointPlaceholder = "{entrypoint}"

// Build argument placeholders for compiled runtimes.
const (
	SourcePlaceholder   = "{source}"
	ArtifactPlaceholder = "{output}"
)

const (
	LanguageUnsupported Language = "unsupported"
	LanguagePython      Language = "python"
	LanguageShell       Language = "shell"
	LanguageNode        Language = "node"
	LanguageGo          Language = "go"
	LanguageTypeScript  Language = "typescript"
	LanguageRust        Language = "rust"
	LanguagePerl        Language = "perl"
	LanguagePHP         Language = "php"
	LanguageRuby        Language = "ruby"
	LanguageC           Language = "c"
	LanguageCPP         Language = "cpp"
	LanguageJava        Language = "java"
	LanguageSwift       Language = "swift"
	LanguageScala       Language = "scala"
	LanguageCSharp      Language = "csharp"
)

type (
	// Language identifies a runtime in the registry.
	Language string

	// Descriptor is the static capability record for one runtime.
	// Values are copied out of the registry; mutating a copy never affects
	// later lookups.
	Descriptor struct {
		Language Language
		// Extension is the file extension (without dot) the descriptor was
		// resolved from. Lookups by language use the first known extension.
		Extension string
		// Extensions lists every extension mapped to this language.
		Extensions []string
		// HostCommand is the executable probed and invoked on the host.
		HostCommand string
		// FallbackCommand is tried when HostCommand does not respond.
		FallbackCommand string
		// Compiled runtimes build an artifact first and then run it.
		Compiled bool
		// BuildArgs are the compiler arguments, with {source} and {output}
		// placeholders. Only used when Compiled is set.
		BuildArgs []string
		// RunArgs are inserted between the command and the source path for
		// run-in-place runtimes (e.g. "go run main.go").
		RunArgs []string
		// Image is the default container image. Zero means no container path.
		Image ImageRef
		// EntrypointStem is the in-container file name without extension.
		EntrypointStem string
		// CommandTemplate is the in-container shell command, with
		// {entrypoint} standing for the mounted source file.
		CommandTemplate string
	}

	// Registry maps extensions and language tags to descriptors.
	Registry struct {
		byExtension map[string]Descriptor
		byLanguage  map[Language]Descriptor
		aliases     map[string]Language
	}
)

// Unsupported is returned for extensions the registry does not know.
// It has no host command, image, entrypoint or command template.
var Unsupported = Descriptor{Language: LanguageUnsupported}

var defaultRegistry = sync.OnceValue(func() *Registry { return New(builtinDescriptors()) })

// Default returns the built-in registry.
func Default() *Registry {
	return defaultRegistry()
}

// New builds a registry from descriptors. Later descriptors win when two
// claim the same extension.
func New(descriptors []Descriptor) *Registry {
	r := &Registry{
		byExtension: make(map[string]Descriptor),
		byLanguage:  make(map[Language]Descriptor),
		aliases:     make(map[string]Language),
	}
	for _, d := range descriptors {
		if len(d.Extensions) == 0 {
			continue
		}
		if d.EntrypointStem == "" {
			d.EntrypointStem = "main"
		}
		d.Extension = d.Extensions[0]
		r.byLanguage[d.Language] = d
		r.aliases[string(d.Language)] = d.Language
		for _, ext := range d.Extensions {
			withExt := d
			withExt.Extension = ext
			r.byExtension[ext] = withExt
			r.aliases[ext] = d.Language
		}
	}
	return r
}

// Resolve returns the descriptor for a file extension, with or without the
// leading dot. Unknown extensions resolve to Unsupported.
func (r *Registry) Resolve(ext string) Descriptor {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	d, ok := r.byExtension[ext]
	if !ok {
		return Unsupported
	}
	return d.clone()
}

// ResolvePath resolves the descriptor for a file path by its extension.
func (r *Registry) ResolvePath(path string) Descriptor {
	return r.Resolve(filepath.Ext(path))
}

// Lookup returns the descriptor for a language tag or one of its extensions
// ("py", "python", "ts").
func (r *Registry) Lookup(name string) (Descriptor, error) {
	lang, ok := r.aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Unsupported, fmt.Errorf("unknown runtime %q (known: %s)", name, strings.Join(r.languageNames(), ", "))
	}
	return r.byLanguage[lang].clone(), nil
}

// Descriptors returns every registered descriptor sorted by language.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.byLanguage))
	for _, d := range r.byLanguage {
		out = append(out, d.clone())
	}
	slices.SortFunc(out, func(a, b Descriptor) int { return strings.Compare(string(a.Language), string(b.Language)) })
	return out
}

func (r *Registry) languageNames() []string {
	names := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		names = append(names, string(lang))
	}
	slices.Sort(names)
	return names
}

// Supported reports whether the descriptor maps to a real runtime.
func (d Descriptor) Supported() bool {
	return d.Language != LanguageUnsupported && d.Language != "" && d.HostCommand != ""
}

// HasContainer reports whether the runtime can be run in its default image.
func (d Descriptor) HasContainer() bool {
	return d.Supported() && !d.Image.IsZero()
}

// Entrypoint returns the in-container source file name: main.<ext>, or the
// runtime's own stem (Main.java for Java).
func (d Descriptor) Entrypoint() (string, bool) {
	if !d.Supported() || d.Extension == "" {
		return "", false
	}
	stem := d.EntrypointStem
	if stem == "" {
		stem = "main"
	}
	return stem + "." + d.Extension, true
}

// Commands returns the host executables to probe, in priority order.
func (d Descriptor) Commands() []string {
	if !d.Supported() {
		return nil
	}
	if d.FallbackCommand == "" {
		return []string{d.HostCommand}
	}
	return []string{d.HostCommand, d.FallbackCommand}
}

// ExpandBuildArgs substitutes the source and artifact paths into BuildArgs.
func (d Descriptor) ExpandBuildArgs(source, artifact string) []string {
	args := d.BuildArgs
	if len(args) == 0 {
		args = []string{SourcePlaceholder, "-o", ArtifactPlaceholder}
	}
	out := make([]string, len(args))
	for i, a := range args {
		a = strings.ReplaceAll(a, SourcePlaceholder, source)
		out[i] = strings.ReplaceAll(a, ArtifactPlaceholder, artifact)
	}
	return out
}

func (d Descriptor) clone() Descriptor {
	d.Extensions = slices.Clone(d.Extensions)
	d.BuildArgs = slices.Clone(d.BuildArgs)
	d.RunArgs = slices.Clone(d.RunArgs)
	return d
}

func builtinDescriptors() []Descriptor {
	return []Descriptor{
		{
			Language:        LanguagePython,
			Extensions:      []string{"py"},
			HostCommand:     "python3",
			FallbackCommand: "python",
			Image:           MustParseImageRef("python:alpine"),
			CommandTemplate: "python3 {entrypoint}",
		},
		{
			Language:        LanguageShell,
			Extensions:      []string{"sh", "bash"},
			HostCommand:     "bash",
			FallbackCommand: "sh",
			Image:           MustParseImageRef("bash:latest"),
			CommandTemplate: "bash {entrypoint}",
		},
		{
			Language:        LanguageNode,
			Extensions:      []string{"js", "mjs", "cjs"},
			HostCommand:     "node",
			Image:           MustParseImageRef("node:alpine"),
			CommandTemplate: "node {entrypoint}",
		},
		{
			Language:        LanguageGo,
			Extensions:      []string{"go"},
			HostCommand:     "go",
			RunArgs:         []string{"run"},
			Image:           MustParseImageRef("golang:alpine"),
			CommandTemplate: "go run {entrypoint}",
		},
		{
			// Bun runs TypeScript directly; the container path needs a
			// TypeScript toolchain image, so none is set by default.
			Language:        LanguageTypeScript,
			Extensions:      []string{"ts"},
			HostCommand:     "bun",
			RunArgs:         []string{"run"},
			CommandTemplate: "tsc {entrypoint} && node /root/app/main.js",
		},
		{
			Language:        LanguageRust,
			Extensions:      []string{"rs"},
			HostCommand:     "rustc",
			Compiled:        true,
			Image:           MustParseImageRef("rust:alpine"),
			CommandTemplate: "rustc {entrypoint} -o /root/app/main && /root/app/main",
		},
		{
			Language:        LanguagePerl,
			Extensions:      []string{"pl"},
			HostCommand:     "perl",
			Image:           MustParseImageRef("perl:latest"),
			CommandTemplate: "perl {entrypoint}",
		},
		{
			Language:        LanguagePHP,
			Extensions:      []string{"php"},
			HostCommand:     "php",
			Image:           MustParseImageRef("php:alpine"),
			CommandTemplate: "php {entrypoint}",
		},
		{
			Language:        LanguageRuby,
			Extensions:      []string{"rb"},
			HostCommand:     "ruby",
			Image:           MustParseImageRef("ruby:alpine"),
			CommandTemplate: "ruby {entrypoint}",
		},
		{
			Language:        LanguageC,
			Extensions:      []string{"c"},
			HostCommand:     "gcc",
			Compiled:        true,
			Image:           MustParseImageRef("gcc:latest"),
			CommandTemplate: "gcc {entrypoint} -o /root/app/main && /root/app/main",
		},
		{
			Language:        LanguageCPP,
			Extensions:      []string{"cpp", "cc", "cxx"},
			HostCommand:     "g++",
			Compiled:        true,
			Image:           MustParseImageRef("gcc:latest"),
			CommandTemplate: "g++ {entrypoint} -o /root/app/main && /root/app/main",
		},
		{
			// java runs single-file programs from source; the public class
			// must match the file name, hence Main.java.
			Language:        LanguageJava,
			Extensions:      []string{"java"},
			HostCommand:     "java",
			EntrypointStem:  "Main",
			Image:           MustParseImageRef("eclipse-temurin:21"),
			CommandTemplate: "java {entrypoint}",
		},
		{
			Language:        LanguageSwift,
			Extensions:      []string{"swift"},
			HostCommand:     "swiftc",
			Compiled:        true,
			Image:           MustParseImageRef("swift:latest"),
			CommandTemplate: "swiftc {entrypoint} -o /root/app/main && /root/app/main",
		},
		{
			Language:    LanguageScala,
			Extensions:  []string{"scala"},
			HostCommand: "scala",
		},
		{
			Language:        LanguageCSharp,
			Extensions:      []string{"cs"},
			HostCommand:     "csc",
			Compiled:        true,
			BuildArgs:       []string{"-out:" + ArtifactPlaceholder, SourcePlaceholder},
			Image:           MustParseImageRef("mono:latest"),
			CommandTemplate: "csc -out:/root/app/main.exe {entrypoint} && mono /root/app/main.exe",
		},
	}
}
