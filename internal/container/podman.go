// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// PodmanEngine implements the Engine interface using Podman CLI.
// It embeds BaseCLIEngine for common CLI operations.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new Podman engine.
// On Linux with SELinux enforcing, volume mounts are labeled with :z.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman")

	e := &PodmanEngine{}
	allOpts := append([]BaseCLIEngineOption{
		WithName(string(EngineTypePodman)),
		WithVolumeFormatter(e.labelVolume),
	}, opts...)
	e.BaseCLIEngine = NewBaseCLIEngine(path, allOpts...)
	return e
}

// Name returns the engine name.
func (e *PodmanEngine) Name() string {
	return string(EngineTypePodman)
}

// Available checks if Podman is available.
func (e *PodmanEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	return e.RunCommandStatus(context.Background(), "version", "--format", "{{.Version}}") == nil
}

// ImageExists checks if an image is present locally.
func (e *PodmanEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "exists", image)
	return err == nil, nil
}

// labelVolume adds the shared SELinux label when SELinux is enforcing and
// the mount carries no label yet.
func (e *PodmanEngine) labelVolume(v VolumeMount) string {
	if v.SELinux == SELinuxLabelNone && e.selinuxCheck() {
		v.SELinux = SELinuxLabelShared
	}
	return v.String()
}

// isSELinuxEnabled checks /sys/fs/selinux/enforce.
func isSELinuxEnabled() bool {
	data, err := os.ReadFile("/sys/fs/selinux/enforce")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}
