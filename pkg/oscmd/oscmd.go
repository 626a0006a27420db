// SPDX-License-Identifier: MPL-2.0

// Package oscmd builds and parses the shell commands used to inspect a
// filesystem that is only reachable through command execution — inside a
// container, on a remote SSH host, or in a local shell. Each supported OS
// family has a Commands implementation that emits the right command
// strings and parses their output into portable types.
package oscmd

import (
	"errors"
	"fmt"
	"time"
)

// FileKind classifies a filesystem entry.
type FileKind string

const (
	KindFile    FileKind = "file"
	KindDir     FileKind = "directory"
	KindSymlink FileKind = "symlink"
	KindOther   FileKind = "other"
)

var (
	// ErrParse is the sentinel error wrapped by output parsing failures.
	ErrParse = errors.New("failed to parse command output")

	// ErrUnsupportedOS is returned by For when no Commands implementation
	// exists for the requested OS.
	ErrUnsupportedOS = errors.New("unsupported operating system")
)

type (
	// FileInfo describes a single filesystem entry.
	FileInfo struct {
		// Name is the base name, or full path for find results.
		Name string
		// Size is the size in bytes.
		Size int64
		// Kind classifies the entry.
		Kind FileKind
		// ModTime is the last modification time, when known.
		ModTime time.Time
	}

	// Commands builds OS-specific command strings and parses their output.
	//
	// Exists, IsFile, and IsDir return commands that answer through their
	// exit status; the others are paired with a Parse method.
	Commands interface {
		// ListDir returns a command listing a directory.
		ListDir(path string) string
		// ParseListDir parses ListDir output.
		ParseListDir(output string) ([]FileInfo, error)

		// Stat returns a command describing a single entry.
		Stat(path string) string
		// ParseStat parses Stat output.
		ParseStat(output string) (*FileInfo, error)

		// Exists returns a command that exits 0 when the path exists.
		Exists(path string) string
		// IsFile returns a command that exits 0 for a regular file.
		IsFile(path string) string
		// IsDir returns a command that exits 0 for a directory.
		IsDir(path string) string

		// MakeDir returns a command creating a directory.
		MakeDir(path string, parents bool) string
		// Remove returns a command deleting a path.
		Remove(path string, recursive bool) string
		// ReadFile returns a command printing a file's contents.
		ReadFile(path string) string

		// Find returns a command walking a tree, optionally filtered by a
		// name pattern.
		Find(root, namePattern string) string
		// ParseFind parses Find output.
		ParseFind(output string) ([]FileInfo, error)
	}
)

// For returns the Commands implementation for a GOOS-style OS name.
func For(osName string) (Commands, error) {
	switch osName {
	case "linux":
		return &UnixCommands{}, nil
	case "darwin", "freebsd", "openbsd", "netbsd":
		return &UnixCommands{BSD: true}, nil
	case "windows":
		return &WindowsCommands{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, osName)
	}
}
