// SPDX-License-Identifier: MPL-2.0

// Package container drives a container engine CLI (Docker or Podman).
//
// The Engine interface covers what a disposable run needs: check that an
// image is present, pull it, and run a shell command in a fresh container
// with a single bind mount. Both implementations embed BaseCLIEngine, which
// owns argument construction and command execution.
//
// Engine selection uses NewEngine(EngineType) with automatic fallback to the
// other engine if the preferred one is unavailable.
package container
