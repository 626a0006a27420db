// SPDX-License-Identifier: MPL-2.0

package oscmd

import (
	"errors"
	"strings"
	"testing"
)

func TestWindowsCommands_Builders(t *testing.T) {
	c := &WindowsCommands{}

	tests := []struct {
		name     string
		got      string
		contains []string
	}{
		{"list", c.ListDir(`C:\data`), []string{"Get-ChildItem", `'C:\data'`, "PSIsContainer"}},
		{"stat", c.Stat(`C:\data\f.txt`), []string{"Get-Item", `'C:\data\f.txt'`}},
		{"exists", c.Exists(`C:\x`), []string{"Test-Path", "exit 0", "exit 1"}},
		{"is file", c.IsFile(`C:\x`), []string{"-PathType Leaf"}},
		{"is dir", c.IsDir(`C:\x`), []string{"-PathType Container"}},
		{"mkdir", c.MakeDir(`C:\a\b`, true), []string{"New-Item", "-Force"}},
		{"remove recursive", c.Remove(`C:\a`, true), []string{"Remove-Item", "-Recurse"}},
		{"remove plain", c.Remove(`C:\a\f`, false), []string{"Remove-Item"}},
		{"read", c.ReadFile(`C:\a\f`), []string{"Get-Content -Raw"}},
		{"find filtered", c.Find(`C:\data`, "*.log"), []string{"-Recurse", "-Filter '*.log'"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.got, `powershell -NoProfile -Command "`) {
				t.Errorf("command %q should invoke powershell", tt.got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(tt.got, want) {
					t.Errorf("command %q missing %q", tt.got, want)
				}
			}
		})
	}

	if got := c.Remove(`C:\a\f`, false); strings.Contains(got, "-Recurse") {
		t.Errorf("Remove() without recursion = %q, should not recurse", got)
	}
}

func TestWindowsCommands_ParseStat(t *testing.T) {
	c := &WindowsCommands{}

	info, err := c.ParseStat("report.docx|2048|regular file|1700000000\r\n")
	if err != nil {
		t.Fatalf("ParseStat() error = %v", err)
	}
	if info.Name != "report.docx" || info.Size != 2048 || info.Kind != KindFile {
		t.Errorf("ParseStat() = %+v", info)
	}

	if _, err := c.ParseStat("only two|fields"); !errors.Is(err, ErrParse) {
		t.Errorf("ParseStat() error = %v, want ErrParse", err)
	}
}

func TestWindowsCommands_ParseListDir(t *testing.T) {
	output := "docs|0|directory|1700000000\r\nreadme.md|120|regular file|1700000100\r\n"

	c := &WindowsCommands{}
	entries, err := c.ParseListDir(output)
	if err != nil {
		t.Fatalf("ParseListDir() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Kind != KindDir || entries[1].Size != 120 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestPSQuote(t *testing.T) {
	if got := psQuote("it's"); got != "'it''s'" {
		t.Errorf("psQuote() = %q", got)
	}
}
