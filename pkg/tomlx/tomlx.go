// SPDX-License-Identifier: MPL-2.0

// Package tomlx wraps go-toml with position-aware load errors matching the
// jsonx conventions.
package tomlx

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/phil65/anyenv/pkg/parseerr"
)

// Load parses TOML data into v. Decode failures are returned as
// *parseerr.Error with line/column taken from the decoder.
func Load(data []byte, v any) error {
	if err := toml.Unmarshal(data, v); err != nil {
		return loadError(data, "", err)
	}
	return nil
}

// LoadString parses a TOML string into v.
func LoadString(data string, v any) error {
	return Load([]byte(data), v)
}

// LoadFile reads path and parses its contents into v.
func LoadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, v); err != nil {
		return loadError(data, path, err)
	}
	return nil
}

// Dump serializes v to a TOML string.
func Dump(v any) (string, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to serialize to TOML: %w", err)
	}
	return buf.String(), nil
}

func loadError(data []byte, path string, err error) error {
	perr := &parseerr.Error{
		Kind:   "TOML",
		Msg:    err.Error(),
		Path:   path,
		Source: string(data),
		Err:    err,
	}

	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		line, col := derr.Position()
		perr.Line = line
		perr.Column = col
		perr.Msg = derr.Error()
	}
	var serr *toml.StrictMissingError
	if errors.As(err, &serr) {
		perr.Msg = serr.String()
	}
	return perr
}
