// SPDX-License-Identifier: MPL-2.0

package main

import cmd "kiln-cli/cmd/kiln"

func main() {
	cmd.Execute()
}
