// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints; an optional catalog Id links it to longer Markdown
// guidance rendered with glamour.
package issue
