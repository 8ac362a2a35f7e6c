// SPDX-License-Identifier: MPL-2.0

// Package runtime executes a single source file once.
//
// Two executors are available:
//   - NativeRuntime runs the file with a host toolchain, either in place
//     (interpreters, "go run") or as a build-then-run pair for compiled
//     languages, timing each phase separately.
//   - ContainerRuntime runs the file inside a disposable container with the
//     source bind-mounted at /root/app/<entrypoint>.
//
// Both consume an immutable Request and produce an Outcome. A child that
// exits non-zero is a normal Outcome; only resolution and spawn failures are
// errors. ImageMissingError is the recoverable condition surfaced when the
// container image is not present locally.
package runtime
