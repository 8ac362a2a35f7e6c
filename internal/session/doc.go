// SPDX-License-Identifier: MPL-2.0

// Package session owns a long-lived watch session: the watched path, the
// scratch file created when no path is given, the run counter and the
// duration of the previous run. Loop turns change notifications into
// serialized runs and prints timing after each one.
package session
