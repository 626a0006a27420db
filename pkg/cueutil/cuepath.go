// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCUEPath is returned when a CUE path fails validation.
var ErrInvalidCUEPath = errors.New("invalid CUE path")

// CUEPath is a JSON-style path into a CUE value, as rendered in error
// messages (e.g. "environments.dev.image").
type CUEPath string

// Validate checks that the path is non-empty.
func (p CUEPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return fmt.Errorf("%w: path is empty", ErrInvalidCUEPath)
	}
	return nil
}

// String returns the path as a plain string.
func (p CUEPath) String() string {
	return string(p)
}
