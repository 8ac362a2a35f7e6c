// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/runnerdev/runner/internal/registry"
	"github.com/runnerdev/runner/internal/runtime"
)

const (
	// ContainerEngineDocker uses Docker as the container runtime.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEnginePodman uses Podman as the container runtime.
	ContainerEnginePodman ContainerEngine = "podman"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine specifies which container runtime to use.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// ContainerEngine selects "docker" or "podman".
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine"`
		// NoContainer is the default for --no-container.
		NoContainer bool `json:"no_container" mapstructure:"no_container"`
		// ClearScreen clears the terminal before each run.
		ClearScreen bool `json:"clear_screen" mapstructure:"clear_screen"`
		// Images overrides the default image per language.
		Images map[string]string `json:"images" mapstructure:"images"`
		// Env entries are applied to every run before CLI entries.
		Env []string `json:"env" mapstructure:"env"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: docker, podman)", e.Value)
}

// Unwrap returns ErrInvalidContainerEngine for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate returns an error if the engine is not docker or podman.
func (e ContainerEngine) Validate() error {
	switch e {
	case ContainerEngineDocker, ContainerEnginePodman:
		return nil
	default:
		return &InvalidContainerEngineError{Value: e}
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ContainerEngine: ContainerEngineDocker,
		ClearScreen:     true,
		Images:          map[string]string{},
		Env:             []string{},
	}
}

// Validate checks values the schema cannot: image references must parse,
// image keys must name a known language and env entries must be KEY=VALUE.
func (c *Config) Validate() error {
	var errs []error
	if err := c.ContainerEngine.Validate(); err != nil {
		errs = append(errs, err)
	}

	reg := registry.Default()
	for _, lang := range slices.Sorted(maps.Keys(c.Images)) {
		if _, err := reg.Lookup(lang); err != nil {
			errs = append(errs, fmt.Errorf("images.%s: %w", lang, err))
			continue
		}
		if _, err := registry.ParseImageRef(c.Images[lang]); err != nil {
			errs = append(errs, fmt.Errorf("images.%s: %w", lang, err))
		}
	}

	if _, err := runtime.ParseEnv(c.Env); err != nil {
		errs = append(errs, fmt.Errorf("env: %w", err))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// ImageFor returns the configured image for a language. Keys may be a
// language tag or one of its extensions; the tag wins when both are set.
func (c *Config) ImageFor(lang registry.Language) (registry.ImageRef, bool) {
	raw, ok := c.Images[string(lang)]
	if !ok {
		reg := registry.Default()
		for _, key := range slices.Sorted(maps.Keys(c.Images)) {
			if d, err := reg.Lookup(key); err == nil && d.Language == lang {
				raw, ok = c.Images[key], true
				break
			}
		}
	}
	if !ok {
		return registry.ImageRef{}, false
	}
	ref, err := registry.ParseImageRef(raw)
	if err != nil {
		return registry.ImageRef{}, false
	}
	return ref, true
}
