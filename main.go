// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/stembuild/stembuild/cmd/stembuild"

func main() {
	cmd.Execute()
}
