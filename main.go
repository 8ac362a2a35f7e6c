// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/runnerdev/runner/cmd/runner"

func main() {
	cmd.Execute()
}
