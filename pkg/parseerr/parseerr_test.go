// SPDX-License-Identifier: MPL-2.0

package parseerr

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "full location",
			err:  &Error{Kind: "JSON", Msg: "unexpected token", Path: "cfg.json", Line: 3, Column: 7},
			want: `JSON parse error at cfg.json:3:7: unexpected token`,
		},
		{
			name: "no path",
			err:  &Error{Kind: "TOML", Msg: "bad value", Line: 2},
			want: `TOML parse error at <input>:2: bad value`,
		},
		{
			name: "no location",
			err:  &Error{Kind: "JSON", Msg: "empty input"},
			want: `JSON parse error: empty input`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &Error{Msg: "outer", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("errors.Is() = false, want true for wrapped error")
	}
}

func TestError_Format(t *testing.T) {
	src := "line one\nline two\nline three\nline four\nline five"
	err := &Error{
		Kind:   "JSON",
		Msg:    "unexpected character",
		Line:   3,
		Column: 6,
		Source: src,
	}

	out := err.Format(FormatOptions{ContextLines: 1})

	if !strings.Contains(out, "JSON Parse Error") {
		t.Errorf("Format() missing header: %q", out)
	}
	if !strings.Contains(out, "> 3 | line three") {
		t.Errorf("Format() missing marked line: %q", out)
	}
	if !strings.Contains(out, "  2 | line two") {
		t.Errorf("Format() missing context line: %q", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("Format() missing column caret: %q", out)
	}
	if strings.Contains(out, "line five") {
		t.Errorf("Format() context window too wide: %q", out)
	}
}

func TestError_FormatWithoutSource(t *testing.T) {
	err := &Error{Kind: "TOML", Msg: "bad value"}
	out := err.Format(FormatOptions{})
	if !strings.Contains(out, "bad value") {
		t.Errorf("Format() = %q, want message included", out)
	}
	if strings.Contains(out, "|") {
		t.Errorf("Format() rendered a source gutter without source: %q", out)
	}
}
