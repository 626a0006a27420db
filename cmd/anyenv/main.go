// SPDX-License-Identifier: MPL-2.0

// Command anyenv fetches URLs, runs code in pluggable execution
// environments, and manages helper processes from the terminal.
package main

func main() {
	Execute()
}
