// SPDX-License-Identifier: MPL-2.0

// Package parseerr provides a unified error type for configuration and data
// parsing failures, carrying source position information and a formatter that
// renders the offending region of the input.
package parseerr

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	locationStyle = lipgloss.NewStyle().Bold(true)
	markerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// Error describes a parse failure with optional source position.
// Line and Column are 1-based; zero means unknown.
type Error struct {
	// Msg is the underlying parser message.
	Msg string
	// Kind names the input format (e.g. "JSON", "TOML", "CUE").
	Kind string
	// Line is the 1-based line of the failure (0 = unknown).
	Line int
	// Column is the 1-based column of the failure (0 = unknown).
	Column int
	// Path is the source file path, if the input came from a file.
	Path string
	// Source is the full input text, used for context rendering.
	Source string
	// Err is the wrapped parser error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	loc := e.location()
	if loc == "" {
		return fmt.Sprintf("%s parse error: %s", e.kind(), e.Msg)
	}
	return fmt.Sprintf("%s parse error at %s: %s", e.kind(), loc, e.Msg)
}

// Unwrap returns the wrapped parser error.
func (e *Error) Unwrap() error { return e.Err }

func (e *Error) kind() string {
	if e.Kind == "" {
		return "parse"
	}
	return e.Kind
}

func (e *Error) location() string {
	loc := e.Path
	if loc == "" && e.Line > 0 {
		loc = "<input>"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
		if e.Column > 0 {
			loc = fmt.Sprintf("%s:%d", loc, e.Column)
		}
	}
	return loc
}

// FormatOptions controls Format output.
type FormatOptions struct {
	// ContextLines is the number of lines shown before and after the
	// failing line. Defaults to 2 when zero.
	ContextLines int
	// Color enables ANSI styling of the rendered output.
	Color bool
}

// Format renders the error with a source excerpt. When no source or line
// information is available it degrades to the plain Error() text.
func (e *Error) Format(opts FormatOptions) string {
	ctxLines := opts.ContextLines
	if ctxLines <= 0 {
		ctxLines = 2
	}

	var b strings.Builder

	header := fmt.Sprintf("%s Parse Error", e.kind())
	loc := e.location()
	if opts.Color {
		b.WriteString(headerStyle.Render(header))
		if loc != "" {
			b.WriteString(" at " + locationStyle.Render(loc))
		}
	} else {
		b.WriteString(header)
		if loc != "" {
			b.WriteString(" at " + loc)
		}
	}
	b.WriteString("\n  " + e.Msg)

	if e.Source == "" || e.Line <= 0 {
		return b.String()
	}

	lines := strings.Split(e.Source, "\n")
	start := max(0, e.Line-1-ctxLines)
	end := min(len(lines), e.Line+ctxLines)
	numWidth := len(fmt.Sprint(end))

	b.WriteString("\n")
	for i := start; i < end; i++ {
		lineNum := i + 1
		prefix := " "
		if lineNum == e.Line {
			prefix = ">"
		}
		row := fmt.Sprintf("%s %*d | %s", prefix, numWidth, lineNum, lines[i])
		if opts.Color && lineNum == e.Line {
			// Style only the gutter so the source text stays verbatim.
			gutter := fmt.Sprintf("%s %*d |", prefix, numWidth, lineNum)
			row = markerStyle.Render(gutter) + " " + lines[i]
		}
		b.WriteString("\n" + row)

		if lineNum == e.Line && e.Column > 0 {
			pad := strings.Repeat(" ", numWidth+4+e.Column-1)
			caret := pad + "^"
			if opts.Color {
				caret = pad + markerStyle.Render("^")
			}
			b.WriteString("\n" + caret)
		}
	}

	return b.String()
}
