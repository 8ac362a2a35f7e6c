// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	goruntime "runtime"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/runnerdev/runner/internal/cueutil"
	"github.com/runnerdev/runner/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "runner"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the runner configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch goruntime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions resolves the config file, validates it and merges it over
// the defaults. It returns the path that was loaded, or "" for defaults only.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("container_engine", string(defaults.ContainerEngine))
	v.SetDefault("no_container", defaults.NoContainer)
	v.SetDefault("clear_screen", defaults.ClearScreen)
	v.SetDefault("images", defaults.Images)
	v.SetDefault("env", defaults.Env)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	resolvedPath, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", loadError(resolvedPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Images == nil {
		cfg.Images = map[string]string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Use 'runner runtimes' to list valid language names").
			WithSuggestion("Image references look like 'repository:tag'").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// resolvePath picks the explicit file, then the config directory, then the
// working directory. A missing explicit file is an error; missing implicit
// files are not.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'runner config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}

	if p := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(p) {
		return p, nil
	}
	if p := ConfigFileName + "." + ConfigFileExt; !opts.SkipWorkingDir && fileExists(p) {
		return p, nil
	}
	return "", nil
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithIssue(issue.ConfigLoadFailedId).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("Run 'runner config show' to see the effective configuration").
		Wrap(err).
		BuildError()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// Viper. Fields are optional, so values need not be concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	unified, err := cueutil.Compile(configSchema, data, "#Config",
		cueutil.WithConcrete(false), cueutil.WithFilename(path))
	if err != nil {
		return err
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to dir (the config
// directory when empty). An existing file is left untouched and reported
// with created == false.
func CreateDefaultConfig(dir string) (path string, created bool, err error) {
	if dir == "" {
		if dir, err = ConfigDir(); err != nil {
			return "", false, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	path = filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(path) {
		return path, false, nil
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}
	return path, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// runner configuration file\n\n")
	fmt.Fprintf(&sb, "container_engine: %q\n", cfg.ContainerEngine)
	fmt.Fprintf(&sb, "no_container: %v\n", cfg.NoContainer)
	fmt.Fprintf(&sb, "clear_screen: %v\n", cfg.ClearScreen)

	if len(cfg.Images) > 0 {
		sb.WriteString("\nimages: {\n")
		for _, lang := range slices.Sorted(maps.Keys(cfg.Images)) {
			fmt.Fprintf(&sb, "\t%s: %q\n", lang, cfg.Images[lang])
		}
		sb.WriteString("}\n")
	}

	if len(cfg.Env) > 0 {
		sb.WriteString("\nenv: [\n")
		for _, e := range cfg.Env {
			fmt.Fprintf(&sb, "\t%q,\n", e)
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}
