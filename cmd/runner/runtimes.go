// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/runnerdev/runner/internal/probe"
	"github.com/runnerdev/runner/internal/registry"
	"github.com/runnerdev/runner/internal/runtime"
)

// Output formats of the runtimes command.
const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

type (
	// runtimeInfo is one registry entry as printed by `runner runtimes`.
	runtimeInfo struct {
		Language         string   `json:"language" yaml:"language"`
		Extensions       []string `json:"extensions" yaml:"extensions"`
		Command          string   `json:"command" yaml:"command"`
		Fallback         string   `json:"fallback,omitempty" yaml:"fallback,omitempty"`
		Compiled         bool     `json:"compiled" yaml:"compiled"`
		Image            string   `json:"image,omitempty" yaml:"image,omitempty"`
		ContainerCommand string   `json:"container_command,omitempty" yaml:"container_command,omitempty"`
		Available        *bool    `json:"available,omitempty" yaml:"available,omitempty"`
	}

	// availability reports whether a runtime's host toolchain responds.
	availability interface {
		IsAvailable(ctx context.Context, d registry.Descriptor) bool
	}
)

func newRuntimesCommand(a *app) *cobra.Command {
	var (
		format string
		check  bool
	)

	cmd := &cobra.Command{
		Use:   "runtimes",
		Short: "List supported languages and their runtimes",
		Long: `List every language runner knows, the file extensions mapped to it,
the host command it runs with and its default container image.

Use --check to probe which host toolchains are installed.`,
		Example: `  runner runtimes
  runner runtimes --check
  runner runtimes --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var prober availability
			if check {
				prober = probe.New()
			}
			infos := collectRuntimes(cmd.Context(), a.registry, prober)
			return writeRuntimes(cmd.OutOrStdout(), format, infos)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format (table, yaml, json)")
	cmd.Flags().BoolVar(&check, "check", false, "probe the host for each runtime's command")
	return cmd
}

// collectRuntimes describes every descriptor of reg. Availability is only
// filled in when prober is non-nil.
func collectRuntimes(ctx context.Context, reg *registry.Registry, prober availability) []runtimeInfo {
	descriptors := reg.Descriptors()
	infos := make([]runtimeInfo, 0, len(descriptors))
	for _, d := range descriptors {
		info := runtimeInfo{
			Language:   string(d.Language),
			Extensions: d.Extensions,
			Command:    d.HostCommand,
			Fallback:   d.FallbackCommand,
			Compiled:   d.Compiled,
		}
		if d.HasContainer() {
			info.Image = d.Image.String()
			if command, err := runtime.ContainerCommand(d, ""); err == nil {
				info.ContainerCommand = command
			}
		}
		if prober != nil {
			ok := prober.IsAvailable(ctx, d)
			info.Available = &ok
		}
		infos = append(infos, info)
	}
	return infos
}

func writeRuntimes(w io.Writer, format string, infos []runtimeInfo) error {
	switch strings.ToLower(format) {
	case formatTable, "":
		writeRuntimeTable(w, infos)
		return nil
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(infos); err != nil {
			return fmt.Errorf("failed to encode runtimes: %w", err)
		}
		return enc.Close()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(infos); err != nil {
			return fmt.Errorf("failed to encode runtimes: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q (valid: table, yaml, json)", format)
	}
}

func writeRuntimeTable(w io.Writer, infos []runtimeInfo) {
	checked := len(infos) > 0 && infos[0].Available != nil

	headers := []any{"LANGUAGE", "EXTENSIONS", "COMMAND", "KIND", "IMAGE"}
	if checked {
		headers = append(headers, "AVAILABLE")
	}

	tbl := table.New(headers...).
		WithWriter(w).
		WithPadding(2).
		WithWidthFunc(lipgloss.Width).
		WithFirstColumnFormatter(func(format string, vals ...any) string {
			return CmdStyle.Render(fmt.Sprintf(format, vals...))
		})

	for _, info := range infos {
		command := info.Command
		if info.Fallback != "" {
			command += " | " + info.Fallback
		}
		kind := "interpreted"
		if info.Compiled {
			kind = "compiled"
		}
		image := info.Image
		if image == "" {
			image = "-"
		}

		row := []any{info.Language, strings.Join(info.Extensions, ", "), command, kind, image}
		if checked {
			mark := ErrorStyle.Render("✗")
			if *info.Available {
				mark = SuccessStyle.Render("✓")
			}
			row = append(row, mark)
		}
		tbl.AddRow(row...)
	}
	tbl.Print()
}
