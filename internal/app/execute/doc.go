// SPDX-License-Identifier: MPL-2.0

// Package execute chooses between the container and host executors for each
// run and owns the recovery path for a missing container image: confirm with
// the user, pull behind a progress indicator, then retry once.
package execute
