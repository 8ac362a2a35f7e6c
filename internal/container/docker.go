// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"os/exec"
)

// DockerEngine implements the Engine interface using Docker CLI.
// It embeds BaseCLIEngine for common CLI operations.
type DockerEngine struct {
	*BaseCLIEngine
}

// NewDockerEngine creates a new Docker engine.
func NewDockerEngine(opts ...BaseCLIEngineOption) *DockerEngine {
	path, _ := exec.LookPath("docker")
	allOpts := append([]BaseCLIEngineOption{WithName(string(EngineTypeDocker))}, opts...)
	return &DockerEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Name returns the engine name.
func (e *DockerEngine) Name() string {
	return string(EngineTypeDocker)
}

// Available checks if the Docker daemon answers.
func (e *DockerEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	return e.RunCommandStatus(context.Background(), "version", "--format", "{{.Server.Version}}") == nil
}

// ImageExists checks if an image is present locally.
func (e *DockerEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	err := e.RunCommandStatus(ctx, "inspect", image)
	return err == nil, nil
}
