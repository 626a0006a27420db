// SPDX-License-Identifier: MPL-2.0

package jsonx

import (
	"errors"
	"strings"
	"testing"

	"github.com/phil65/anyenv/pkg/parseerr"
)

func TestLoad(t *testing.T) {
	var v map[string]any
	if err := LoadString(`{"name": "anyenv", "count": 3}`, &v); err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if v["name"] != "anyenv" {
		t.Errorf("name = %v, want %q", v["name"], "anyenv")
	}
}

func TestLoad_SyntaxErrorPosition(t *testing.T) {
	src := "{\n  \"a\": 1,\n  \"b\": ???\n}"
	var v map[string]any
	err := LoadString(src, &v)
	if err == nil {
		t.Fatal("LoadString() error = nil, want parse error")
	}

	var perr *parseerr.Error
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *parseerr.Error", err)
	}
	if perr.Kind != "JSON" {
		t.Errorf("Kind = %q, want %q", perr.Kind, "JSON")
	}
	if perr.Line != 3 {
		t.Errorf("Line = %d, want 3", perr.Line)
	}
	if perr.Source != src {
		t.Error("Source not preserved on error")
	}
}

func TestLoad_TypeErrorPosition(t *testing.T) {
	var v struct {
		Count int `json:"count"`
	}
	err := LoadString(`{"count": "many"}`, &v)
	if err == nil {
		t.Fatal("LoadString() error = nil, want type error")
	}
	var perr *parseerr.Error
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *parseerr.Error", err)
	}
	if perr.Line != 1 {
		t.Errorf("Line = %d, want 1", perr.Line)
	}
}

func TestDump(t *testing.T) {
	out, err := Dump(map[string]int{"b": 2, "a": 1}, DumpOptions{})
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	// encoding/json sorts map keys.
	if out != `{"a":1,"b":2}` {
		t.Errorf("Dump() = %q, want %q", out, `{"a":1,"b":2}`)
	}
}

func TestDump_Indent(t *testing.T) {
	out, err := Dump(map[string]int{"a": 1}, DumpOptions{Indent: true})
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	want := "{\n  \"a\": 1\n}"
	if out != want {
		t.Errorf("Dump() = %q, want %q", out, want)
	}
}

func TestPretty(t *testing.T) {
	out, err := Pretty([]byte(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("Pretty() error = %v", err)
	}
	// json.Indent preserves input order.
	if !strings.Contains(out, "\"b\": 2") || strings.Index(out, "\"b\"") > strings.Index(out, "\"a\"") {
		t.Errorf("Pretty() = %q, want original key order preserved", out)
	}
}

func TestValid(t *testing.T) {
	if !Valid([]byte(` {"ok": true} `)) {
		t.Error("Valid() = false for valid document")
	}
	if Valid([]byte(`{"ok":`)) {
		t.Error("Valid() = true for truncated document")
	}
}
