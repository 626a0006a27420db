// SPDX-License-Identifier: MPL-2.0

package platform

// runtime.GOOS values the tool branches on.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)
