package sandbox

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codecoach/leettutor/pkg/types"
)

// pyJSONLiteral renders v as JSON text wrapped in a quoted Python string
// literal, for every shape Input/Expected can take (objects, arrays,
// strings, numbers, true/false/null read back by json.loads). Plain
// json.Marshal output is NOT fed to the Python parser directly, since
// true/false/null aren't Python literals; it is instead embedded as a
// quoted string and parsed back with json.loads inside the wrapper.
func pyJSONLiteral(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal literal: %w", err)
	}
	quoted, err := json.Marshal(string(data))
	if err != nil {
		return "", fmt.Errorf("quote literal: %w", err)
	}
	return string(quoted), nil
}

// pyStringLiteral renders s as a Python string literal via JSON string
// encoding, which is a valid subset of Python double-quoted string syntax
// for every escape json.Marshal can produce.
func pyStringLiteral(s string) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("quote string: %w", err)
	}
	return string(data), nil
}

const wrapperTemplate = `import json
import resource
import sys
import time

RESULT_START = %s
RESULT_END = %s
STDOUT_START = %s
STDOUT_END = %s


def _set_limits():
    try:
        resource.setrlimit(resource.RLIMIT_AS, (%d, %d))
    except (ValueError, OSError):
        pass
    try:
        resource.setrlimit(resource.RLIMIT_CPU, (%d, %d))
    except (ValueError, OSError):
        pass
    try:
        resource.setrlimit(resource.RLIMIT_NOFILE, (%d, %d))
    except (ValueError, OSError):
        pass
    try:
        resource.setrlimit(resource.RLIMIT_FSIZE, (%d, %d))
    except (ValueError, OSError):
        pass
    try:
        resource.setrlimit(resource.RLIMIT_NPROC, (%d, %d))
    except (ValueError, OSError, AttributeError):
        pass


_set_limits()

_user_code = %s
exec(_user_code, globals())

_helpers_src = %s
if _helpers_src:
    import types as _types
    helpers = _types.ModuleType("helpers")
    exec(_helpers_src, helpers.__dict__)

_input = json.loads(%s)
globals().update(_input)

_result = {"passed": False, "actual": None, "error": None, "runtime_ms": 0}
print(STDOUT_START, end="")
sys.stdout.flush()
_start = time.perf_counter()
try:
    _actual = %s
    _result["actual"] = _actual
    _result["passed"] = True
except BaseException as e:
    _result["error"] = "%%s: %%s" %% (type(e).__name__, e)
_result["runtime_ms"] = int((time.perf_counter() - _start) * 1000)
sys.stdout.flush()
print(STDOUT_END, end="")
print(RESULT_START)
print(json.dumps(_result))
print(RESULT_END)
`

// generateWrapper builds the standalone Python source run for one test
// case: it sets resource limits, execs the submitted code and any catalog
// helpers into globals, binds the test case's input by name, invokes the
// catalog's safe function_call template, and emits a delimited JSON result.
func generateWrapper(code string, helpers []string, tc types.TestCase, limits Limits, d delimiterSet) (string, error) {
	userCode, err := pyStringLiteral(code)
	if err != nil {
		return "", err
	}
	helpersSrc, err := pyStringLiteral(strings.Join(helpers, "\n\n"))
	if err != nil {
		return "", err
	}
	inputJSON, err := pyJSONLiteral(tc.Input)
	if err != nil {
		return "", err
	}

	asBytes := limits.AddressSpaceMiB * 1024 * 1024
	fsizeBytes := limits.FileSizeMiB * 1024 * 1024

	resultStart, err := pyStringLiteral(d.ResultStart)
	if err != nil {
		return "", err
	}
	resultEnd, err := pyStringLiteral(d.ResultEnd)
	if err != nil {
		return "", err
	}
	stdoutStart, err := pyStringLiteral(d.StdoutStart)
	if err != nil {
		return "", err
	}
	stdoutEnd, err := pyStringLiteral(d.StdoutEnd)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(wrapperTemplate,
		resultStart, resultEnd, stdoutStart, stdoutEnd,
		asBytes, asBytes,
		limits.CPUSeconds, limits.CPUSeconds,
		limits.MaxFDs, limits.MaxFDs,
		fsizeBytes, fsizeBytes,
		limits.MaxProcesses, limits.MaxProcesses,
		userCode,
		helpersSrc,
		inputJSON,
		tc.FunctionCall,
	), nil
}
