// SPDX-License-Identifier: MPL-2.0

// Package jsonx wraps encoding/json with position-aware load errors and a
// small set of dump conveniences.
package jsonx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/phil65/anyenv/pkg/parseerr"
)

// Load parses data into v. Syntax and type errors are returned as
// *parseerr.Error with line/column resolved from the byte offset.
func Load(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return loadError(data, "", err)
	}
	return nil
}

// LoadString parses a JSON string into v.
func LoadString(data string, v any) error {
	return Load([]byte(data), v)
}

// LoadFile reads path and parses its contents into v.
func LoadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return loadError(data, path, err)
	}
	return nil
}

// DumpOptions controls Dump output.
type DumpOptions struct {
	// Indent pretty-prints with two-space indentation.
	Indent bool
}

// Dump serializes v to a JSON string. Map keys are emitted in sorted order
// (encoding/json behavior).
func Dump(v any, opts DumpOptions) (string, error) {
	var (
		data []byte
		err  error
	)
	if opts.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", fmt.Errorf("failed to serialize to JSON: %w", err)
	}
	return string(data), nil
}

// loadError converts an encoding/json error into a *parseerr.Error,
// resolving the byte offset to a line and column.
func loadError(data []byte, path string, err error) error {
	perr := &parseerr.Error{
		Kind:   "JSON",
		Msg:    err.Error(),
		Path:   path,
		Source: string(data),
		Err:    err,
	}

	var offset int64 = -1
	switch e := err.(type) {
	case *json.SyntaxError:
		offset = e.Offset
	case *json.UnmarshalTypeError:
		offset = e.Offset
	}
	if offset >= 0 {
		perr.Line, perr.Column = offsetToPosition(data, offset)
	}
	return perr
}

// offsetToPosition converts a byte offset to 1-based line and column.
// The decoder reports the offset just past the offending token.
func offsetToPosition(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	prefix := data[:offset]
	line = 1 + bytes.Count(prefix, []byte("\n"))
	if idx := bytes.LastIndexByte(prefix, '\n'); idx >= 0 {
		col = int(offset) - idx
	} else {
		col = int(offset)
	}
	if col == 0 {
		col = 1
	}
	return line, col
}

// Valid reports whether data is syntactically valid JSON.
func Valid(data []byte) bool {
	return json.Valid(bytes.TrimSpace(data))
}

// Pretty re-indents a JSON document, preserving key order.
func Pretty(data []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return "", loadError(data, "", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
