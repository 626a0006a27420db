// SPDX-License-Identifier: MPL-2.0

package execenv

import (
	"strings"

	"github.com/phil65/anyenv/pkg/jsonx"
)

// ResultMarker prefixes the stdout line that wrapped code uses to report
// its structured outcome. Environments strip the marker line from the
// surfaced stdout.
const ResultMarker = "__EXECUTION_RESULT__"

type markerPayload struct {
	Result  any    `json:"result"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Type    string `json:"type,omitempty"`
}

const pythonWrapper = `import json as __anyenv_json

def __anyenv_main():
%s
    return locals().get("result")

try:
    __anyenv_value = __anyenv_main()
    print("` + ResultMarker + ` " + __anyenv_json.dumps({"result": __anyenv_value, "success": True}, default=repr), flush=True)
except Exception as __anyenv_err:
    print("` + ResultMarker + ` " + __anyenv_json.dumps({"success": False, "error": str(__anyenv_err), "type": type(__anyenv_err).__name__}), flush=True)
`

const javascriptWrapper = `(async () => {
  try {
    const result = await (async () => {
%s
    })();
    console.log("` + ResultMarker + ` " + JSON.stringify({result: result === undefined ? null : result, success: true}));
  } catch (err) {
    console.log("` + ResultMarker + ` " + JSON.stringify({success: false, error: String((err && err.message) || err), type: (err && err.name) || "Error"}));
  }
})();
`

// wrapCode embeds a code snippet in the language-specific harness that
// reports its outcome on a marker line. Shell code runs unwrapped; its
// outcome is the exit status.
func wrapCode(lang Language, code string) (string, error) {
	switch lang {
	case LanguagePython:
		return strings.Replace(pythonWrapper, "%s", indent(code, "    "), 1), nil
	case LanguageJavaScript, LanguageTypeScript:
		return strings.Replace(javascriptWrapper, "%s", indent(code, "      "), 1), nil
	case LanguageShell:
		return code, nil
	default:
		return "", lang.Validate()
	}
}

// scriptFileName returns the temp-file name used for a snippet of the
// given language. Interpreters key off the extension (notably deno).
func scriptFileName(lang Language) string {
	switch lang {
	case LanguagePython:
		return "snippet.py"
	case LanguageJavaScript:
		return "snippet.js"
	case LanguageTypeScript:
		return "snippet.ts"
	default:
		return "snippet.sh"
	}
}

// indent prefixes every line of code, keeping blank lines blank so Python
// indentation stays valid.
func indent(code, prefix string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

// parseMarker extracts the marker payload from captured stdout. It returns
// the payload (nil when the output carries none) and the stdout with the
// marker line removed.
func parseMarker(stdout string) (*markerPayload, string) {
	if !strings.Contains(stdout, ResultMarker) {
		return nil, stdout
	}

	var payload *markerPayload
	var kept []string
	for line := range strings.Lines(stdout) {
		trimmed := strings.TrimRight(line, "\n")
		if rest, ok := strings.CutPrefix(trimmed, ResultMarker+" "); ok {
			var p markerPayload
			if err := jsonx.LoadString(rest, &p); err == nil {
				// The last marker line wins if several are printed.
				payload = &p
				continue
			}
		}
		kept = append(kept, trimmed)
	}
	return payload, strings.Join(kept, "\n")
}

// resultFromOutput builds a Result from captured output and the process
// exit status. The marker payload, when present, overrides exit-status
// success since the wrapper reports failures with exit code 0.
func resultFromOutput(stdout, stderr string, exitCode int) *Result {
	payload, cleaned := parseMarker(stdout)

	result := &Result{
		Stdout:   cleaned,
		Stderr:   stderr,
		ExitCode: exitCode,
	}

	switch {
	case payload != nil:
		result.Value = payload.Result
		result.Success = payload.Success
		result.ErrMsg = payload.Error
		result.ErrType = payload.Type
	case exitCode == 0:
		result.Success = true
	default:
		result.Success = false
		result.ErrMsg = strings.TrimSpace(stderr)
		if result.ErrMsg == "" {
			result.ErrMsg = "process exited with non-zero status"
		}
		result.ErrType = "ExitError"
	}

	return result
}
