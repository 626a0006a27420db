// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phil65/anyenv/pkg/cueutil"
	"github.com/phil65/anyenv/pkg/parseerr"
	"github.com/phil65/anyenv/pkg/tomlx"
)

//go:embed envfile_schema.cue
var envfileSchema string

// DefaultNames are the file names Find looks for, in preference order.
var DefaultNames = []string{"anyenv.cue", "anyenv.toml"}

// ErrNotFound is returned by Find when no envfile exists in the start
// directory or any of its parents.
var ErrNotFound = errors.New("no envfile found")

// Parse reads and parses an envfile, dispatching on its extension
// (.cue or .toml).
func Parse(path string) (*Envfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read envfile at %s: %w", path, err)
	}
	return ParseBytes(data, path)
}

// ParseBytes parses envfile content. The path selects the format and
// appears in error messages.
func ParseBytes(data []byte, path string) (*Envfile, error) {
	var (
		f   *Envfile
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		f, err = parseTOML(data, path)
	default:
		f, err = parseCUE(data, path)
	}
	if err != nil {
		return nil, err
	}

	f.FilePath = path
	if err := f.decode(); err != nil {
		return nil, err
	}
	return f, nil
}

// Find walks from startDir up to the filesystem root looking for an
// envfile by its default names.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", startDir, err)
	}

	for {
		for _, name := range DefaultNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: searched from %s upward", ErrNotFound, startDir)
		}
		dir = parent
	}
}

// parseCUE validates the data against the embedded schema and decodes
// it. Schema violations surface as *parseerr.Error.
func parseCUE(data []byte, path string) (*Envfile, error) {
	result, err := cueutil.ParseAndDecodeString[Envfile](
		envfileSchema,
		data,
		"#Envfile",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return nil, cueError(err, path, data)
	}
	return result.Value, nil
}

func parseTOML(data []byte, path string) (*Envfile, error) {
	var f Envfile
	if err := tomlx.Load(data, &f); err != nil {
		var perr *parseerr.Error
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return &f, nil
}

// cueError maps CUE validation failures onto the shared parse error
// type, so CUE and TOML files fail the same way.
func cueError(err error, path string, data []byte) error {
	msg := err.Error()

	var ve *cueutil.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Message
		if ve.CUEPath != "" {
			msg = ve.CUEPath + ": " + ve.Message
		}
	}

	return &parseerr.Error{
		Kind:   "CUE",
		Msg:    msg,
		Path:   path,
		Source: string(data),
		Err:    err,
	}
}
