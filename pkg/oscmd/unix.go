// SPDX-License-Identifier: MPL-2.0

package oscmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UnixCommands builds commands for Linux and BSD-family systems. The two
// differ only where GNU and BSD userlands diverge (stat and find output
// formats).
type UnixCommands struct {
	// BSD selects BSD-style stat/find invocations (Darwin, *BSD).
	BSD bool
}

// ListDir returns a command listing a directory.
func (c *UnixCommands) ListDir(path string) string {
	return "ls -la " + shellQuote(path)
}

// Stat returns a command describing a single entry in
// "name|size|kind|mtime" pipe format.
func (c *UnixCommands) Stat(path string) string {
	if c.BSD {
		return fmt.Sprintf("stat -f '%%N|%%z|%%HT|%%m' %s", shellQuote(path))
	}
	return fmt.Sprintf("stat -c '%%n|%%s|%%F|%%Y' %s", shellQuote(path))
}

// Exists returns a command that exits 0 when the path exists.
func (c *UnixCommands) Exists(path string) string {
	return "test -e " + shellQuote(path)
}

// IsFile returns a command that exits 0 for a regular file.
func (c *UnixCommands) IsFile(path string) string {
	return "test -f " + shellQuote(path)
}

// IsDir returns a command that exits 0 for a directory.
func (c *UnixCommands) IsDir(path string) string {
	return "test -d " + shellQuote(path)
}

// MakeDir returns a command creating a directory.
func (c *UnixCommands) MakeDir(path string, parents bool) string {
	if parents {
		return "mkdir -p " + shellQuote(path)
	}
	return "mkdir " + shellQuote(path)
}

// Remove returns a command deleting a path.
func (c *UnixCommands) Remove(path string, recursive bool) string {
	if recursive {
		return "rm -rf " + shellQuote(path)
	}
	return "rm -f " + shellQuote(path)
}

// ReadFile returns a command printing a file's contents.
func (c *UnixCommands) ReadFile(path string) string {
	return "cat " + shellQuote(path)
}

// Find returns a command walking a tree in "size|kind|path" pipe format.
func (c *UnixCommands) Find(root, namePattern string) string {
	var b strings.Builder
	b.WriteString("find ")
	b.WriteString(shellQuote(root))
	if namePattern != "" {
		b.WriteString(" -name ")
		b.WriteString(shellQuote(namePattern))
	}
	if c.BSD {
		b.WriteString(" -exec stat -f '%z|%HT|%N' {} \\;")
	} else {
		b.WriteString(" -printf '%s|%y|%p\\n'")
	}
	return b.String()
}

// ParseListDir parses ls -la output.
func (c *UnixCommands) ParseListDir(output string) ([]FileInfo, error) {
	var entries []FileInfo
	for line := range strings.Lines(output) {
		line = strings.TrimRight(line, "\n")
		if line == "" || strings.HasPrefix(line, "total ") {
			continue
		}

		entry, err := parseLsLine(line)
		if err != nil {
			return nil, err
		}
		if entry == nil || entry.Name == "." || entry.Name == ".." {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// ParseStat parses a pipe-format stat line.
func (c *UnixCommands) ParseStat(output string) (*FileInfo, error) {
	line := strings.TrimSpace(output)
	parts := strings.Split(line, "|")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: stat line %q has %d fields, want 4", ErrParse, line, len(parts))
	}

	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: stat size %q: %v", ErrParse, parts[1], err)
	}
	mtime, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: stat mtime %q: %v", ErrParse, parts[3], err)
	}

	return &FileInfo{
		Name:    parts[0],
		Size:    size,
		Kind:    kindFromDescription(parts[2]),
		ModTime: time.Unix(mtime, 0).UTC(),
	}, nil
}

// ParseFind parses pipe-format find output.
func (c *UnixCommands) ParseFind(output string) ([]FileInfo, error) {
	var entries []FileInfo
	for line := range strings.Lines(output) {
		line = strings.TrimRight(line, "\n")
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: find line %q has %d fields, want 3", ErrParse, line, len(parts))
		}
		size, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: find size %q: %v", ErrParse, parts[0], err)
		}

		entries = append(entries, FileInfo{
			Name: parts[2],
			Size: size,
			Kind: kindFromDescription(parts[1]),
		})
	}
	return entries, nil
}

// parseLsLine parses one ls -la entry line. Lines that are not entry lines
// (fewer than 9 fields) yield nil without an error.
func parseLsLine(line string) (*FileInfo, error) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return nil, nil
	}

	perms := fields[0]
	size, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		// Device files list major,minor instead of a size.
		size = 0
	}

	name := strings.Join(fields[8:], " ")
	kind := kindFromPermChar(perms[0])
	if kind == KindSymlink {
		// "name -> target" keeps only the link name.
		if idx := strings.Index(name, " -> "); idx >= 0 {
			name = name[:idx]
		}
	}

	return &FileInfo{
		Name:    name,
		Size:    size,
		Kind:    kind,
		ModTime: parseLsTimestamp(fields[5], fields[6], fields[7]),
	}, nil
}

// parseLsTimestamp handles the two timestamp shapes ls -la uses:
// "Jan 5 12:30" for recent entries and "Jan 5 2023" for older ones.
func parseLsTimestamp(month, day, rest string) time.Time {
	return parseLsTimestampAt(month, day, rest, time.Now())
}

func parseLsTimestampAt(month, day, rest string, now time.Time) time.Time {
	if strings.Contains(rest, ":") {
		t, err := time.Parse("Jan 2 15:04", fmt.Sprintf("%s %s %s", month, day, rest))
		if err != nil {
			return time.Time{}
		}
		// The year-less form always means the last twelve months. Stamping
		// the current year on a December entry read in January would date
		// it in the future, so roll those back a year.
		t = t.AddDate(now.Year(), 0, 0)
		if t.After(now) {
			t = t.AddDate(-1, 0, 0)
		}
		return t
	}
	t, err := time.Parse("Jan 2 2006", fmt.Sprintf("%s %s %s", month, day, rest))
	if err != nil {
		return time.Time{}
	}
	return t
}

func kindFromPermChar(c byte) FileKind {
	switch c {
	case 'd':
		return KindDir
	case 'l':
		return KindSymlink
	case '-':
		return KindFile
	default:
		return KindOther
	}
}

// kindFromDescription maps stat/find type descriptions to a FileKind. It
// accepts GNU phrases ("regular file"), BSD phrases ("Regular File"), and
// find type characters (f/d/l).
func kindFromDescription(desc string) FileKind {
	switch strings.ToLower(strings.TrimSpace(desc)) {
	case "f", "regular file", "regular empty file":
		return KindFile
	case "d", "directory":
		return KindDir
	case "l", "symbolic link":
		return KindSymlink
	default:
		return KindOther
	}
}

// shellQuote single-quotes a path for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
