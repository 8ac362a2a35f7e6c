// SPDX-License-Identifier: MPL-2.0

// Package testutil provides shared helpers for tests: an exec command
// recorder that fakes child processes with the TestHelperProcess pattern,
// and small filesystem helpers that fail the test on error.
//
// Packages using the recorder must declare
//
//	func TestHelperProcess(t *testing.T) { testutil.HelperProcess() }
//
// in one of their _test.go files.
package testutil
