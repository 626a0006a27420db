// SPDX-License-Identifier: MPL-2.0

// Package issue turns failures into messages a user can act on. An
// issue pairs the underlying error with context (which envfile, which
// environment) and concrete remediation steps rendered as Markdown in
// the CLI.
package issue
