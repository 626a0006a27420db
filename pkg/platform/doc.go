// SPDX-License-Identifier: MPL-2.0

// Package platform centralizes operating-system name constants used when
// selecting command dialects and execution behavior for a target system.
package platform
