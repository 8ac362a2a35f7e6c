// SPDX-License-Identifier: MPL-2.0

// Package registry holds the static table of runtimes the runner knows how to
// execute, keyed by file extension and by language tag.
//
// Lookups are pure: the same extension always resolves to the same
// Descriptor, and unknown extensions resolve to Unsupported instead of an
// error so callers can fail at the point where a capability is needed.
package registry
