// SPDX-License-Identifier: MPL-2.0

// Package sshserver provides a loopback SSH server built on the Wish library.
//
// Sandboxed environments without direct host access use it as a callback
// channel: code running inside a sandbox can SSH back into the host. The
// server only accepts connections from sessions that anyenv itself has
// opened, using a token-based authentication mechanism.
package sshserver
