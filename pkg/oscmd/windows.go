// SPDX-License-Identifier: MPL-2.0

package oscmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WindowsCommands builds PowerShell commands. The scripts emit the same
// pipe-separated formats as the Unix stat/find commands so parsing stays
// uniform across OS families.
type WindowsCommands struct{}

// psUnixTime renders a PowerShell expression for a Unix timestamp.
const psUnixTime = `[int64](($_.LastWriteTimeUtc - [datetime]'1970-01-01').TotalSeconds)`

// ListDir returns a command listing a directory in "name|size|kind|mtime"
// pipe format, one entry per line.
func (c *WindowsCommands) ListDir(path string) string {
	script := fmt.Sprintf(
		`Get-ChildItem -Force -LiteralPath %s | ForEach-Object { "$($_.Name)|$(if ($_.PSIsContainer) { 0 } else { $_.Length })|$(if ($_.PSIsContainer) { 'directory' } else { 'regular file' })|$(%s)" }`,
		psQuote(path), psUnixTime)
	return powershell(script)
}

// Stat returns a command describing a single entry in pipe format.
func (c *WindowsCommands) Stat(path string) string {
	script := fmt.Sprintf(
		`Get-Item -Force -LiteralPath %s | ForEach-Object { "$($_.Name)|$(if ($_.PSIsContainer) { 0 } else { $_.Length })|$(if ($_.PSIsContainer) { 'directory' } else { 'regular file' })|$(%s)" }`,
		psQuote(path), psUnixTime)
	return powershell(script)
}

// Exists returns a command that exits 0 when the path exists.
func (c *WindowsCommands) Exists(path string) string {
	return powershell(fmt.Sprintf(`if (Test-Path -LiteralPath %s) { exit 0 } else { exit 1 }`, psQuote(path)))
}

// IsFile returns a command that exits 0 for a regular file.
func (c *WindowsCommands) IsFile(path string) string {
	return powershell(fmt.Sprintf(`if (Test-Path -LiteralPath %s -PathType Leaf) { exit 0 } else { exit 1 }`, psQuote(path)))
}

// IsDir returns a command that exits 0 for a directory.
func (c *WindowsCommands) IsDir(path string) string {
	return powershell(fmt.Sprintf(`if (Test-Path -LiteralPath %s -PathType Container) { exit 0 } else { exit 1 }`, psQuote(path)))
}

// MakeDir returns a command creating a directory. New-Item creates parent
// directories unconditionally, matching mkdir -p.
func (c *WindowsCommands) MakeDir(path string, _ bool) string {
	return powershell(fmt.Sprintf(`New-Item -ItemType Directory -Force -Path %s | Out-Null`, psQuote(path)))
}

// Remove returns a command deleting a path.
func (c *WindowsCommands) Remove(path string, recursive bool) string {
	if recursive {
		return powershell(fmt.Sprintf(`Remove-Item -Force -Recurse -LiteralPath %s`, psQuote(path)))
	}
	return powershell(fmt.Sprintf(`Remove-Item -Force -LiteralPath %s`, psQuote(path)))
}

// ReadFile returns a command printing a file's contents.
func (c *WindowsCommands) ReadFile(path string) string {
	return powershell(fmt.Sprintf(`Get-Content -Raw -LiteralPath %s`, psQuote(path)))
}

// Find returns a command walking a tree in "size|kind|path" pipe format.
func (c *WindowsCommands) Find(root, namePattern string) string {
	filter := ""
	if namePattern != "" {
		filter = " -Filter " + psQuote(namePattern)
	}
	script := fmt.Sprintf(
		`Get-ChildItem -Force -Recurse -LiteralPath %s%s | ForEach-Object { "$(if ($_.PSIsContainer) { 0 } else { $_.Length })|$(if ($_.PSIsContainer) { 'directory' } else { 'regular file' })|$($_.FullName)" }`,
		psQuote(root), filter)
	return powershell(script)
}

// ParseListDir parses pipe-format directory listings.
func (c *WindowsCommands) ParseListDir(output string) ([]FileInfo, error) {
	var entries []FileInfo
	for line := range strings.Lines(output) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		entry, err := parsePipeStatLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// ParseStat parses a pipe-format stat line.
func (c *WindowsCommands) ParseStat(output string) (*FileInfo, error) {
	return parsePipeStatLine(strings.TrimSpace(output))
}

// ParseFind parses pipe-format find output.
func (c *WindowsCommands) ParseFind(output string) ([]FileInfo, error) {
	return (&UnixCommands{}).ParseFind(output)
}

func parsePipeStatLine(line string) (*FileInfo, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: entry line %q has %d fields, want 4", ErrParse, line, len(parts))
	}
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: size %q: %v", ErrParse, parts[1], err)
	}
	mtime, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: mtime %q: %v", ErrParse, parts[3], err)
	}
	return &FileInfo{
		Name:    parts[0],
		Size:    size,
		Kind:    kindFromDescription(parts[2]),
		ModTime: time.Unix(mtime, 0).UTC(),
	}, nil
}

// powershell wraps a script for invocation through cmd or a remote shell.
func powershell(script string) string {
	return `powershell -NoProfile -Command "` + strings.ReplaceAll(script, `"`, "\\\"") + `"`
}

// psQuote single-quotes a path for PowerShell.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
