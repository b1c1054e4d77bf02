package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/codecoach/leettutor/pkg/types"
)

// ErrCodeTooLarge is returned by RunTests when submitted code exceeds
// MaxCodeBytes (spec §4.1's 50 KB input-size check, enforced before any
// subprocess is spawned).
var ErrCodeTooLarge = fmt.Errorf("code exceeds %d bytes", MaxCodeBytes)

// Executor runs untrusted code against trusted catalog test cases. Each
// test case gets its own wrapper subprocess so one runaway test cannot
// corrupt the resource budget or result state of another.
type Executor struct {
	PythonBinary string
	Limits       Limits
}

// New returns an Executor using the given Python interpreter and the
// default resource limits.
func New(pythonBinary string) *Executor {
	return &Executor{PythonBinary: pythonBinary, Limits: DefaultLimits()}
}

// RunTests executes code against every test case in order and returns the
// aggregate pass/fail summary. The only error returned is ErrCodeTooLarge.
// A per-test infrastructure failure (e.g. the interpreter could not even
// be spawned) is recorded as a failed TestResult with Error set, like a
// failing *test* (wrong answer, exception, timeout), and the run goes on.
func (e *Executor) RunTests(ctx context.Context, code string, helpers []string, cases []types.TestCase) (*types.RunSummary, error) {
	if len(code) > MaxCodeBytes {
		return nil, ErrCodeTooLarge
	}

	summary := &types.RunSummary{Results: make([]types.TestResult, 0, len(cases))}
	for i, tc := range cases {
		result, err := e.runOne(ctx, code, helpers, tc, i+1)
		if err != nil {
			result.Passed = false
			result.Error = sanitizeStderr(err.Error())
		}
		if result.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, result)
	}
	return summary, nil
}

func (e *Executor) runOne(ctx context.Context, code string, helpers []string, tc types.TestCase, num int) (types.TestResult, error) {
	result := types.TestResult{TestNum: num, Input: tc.Input, Expected: tc.Expected}

	delims, err := newDelimiterSet()
	if err != nil {
		return result, err
	}

	src, err := generateWrapper(code, helpers, tc, e.Limits, delims)
	if err != nil {
		return result, err
	}

	scratch, err := os.MkdirTemp("", "leettutor-run-*")
	if err != nil {
		return result, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	scriptPath := filepath.Join(scratch, "wrapper.py")
	if err := os.WriteFile(scriptPath, []byte(src), 0600); err != nil {
		return result, fmt.Errorf("write wrapper: %w", err)
	}

	testCtx, cancel := context.WithTimeout(ctx, e.Limits.WallClock)
	defer cancel()

	cmd := exec.Command(e.PythonBinary, scriptPath)
	cmd.Dir = scratch
	cmd.Env = minimalEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return result, fmt.Errorf("start interpreter: %w", err)
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	var timedOut bool
	var waitErr error
	select {
	case waitErr = <-waitDone:
	case <-testCtx.Done():
		timedOut = true
		killProcessGroup(cmd, waitDone)
	}

	if timedOut {
		result.Error = fmt.Sprintf("Time Limit Exceeded (%d s)", e.Limits.WallClock/time.Second)
		result.RuntimeMs = e.Limits.WallClock.Milliseconds()
		result.Stdout = sanitizeStderr(extractBetween(stdout.String(), delims.StdoutStart, delims.StdoutEnd))
		return result, nil
	}

	if sig, killed := killSignal(waitErr); killed {
		result.Error = fmt.Sprintf("Killed (signal %d)", sig)
		result.Stdout = sanitizeStderr(extractBetween(stdout.String(), delims.StdoutStart, delims.StdoutEnd))
		return result, nil
	}

	record, ok := extractResultJSON(stdout.String(), delims)
	if !ok {
		result.Error = "sandbox produced no result"
		if stderr.Len() > 0 {
			result.Error = sanitizeStderr(strings.TrimSpace(stderr.String()))
		}
		return result, nil
	}

	var parsed struct {
		Passed    bool   `json:"passed"`
		Actual    any    `json:"actual"`
		Error     string `json:"error"`
		RuntimeMs int64  `json:"runtime_ms"`
	}
	if err := json.Unmarshal([]byte(record), &parsed); err != nil {
		result.Error = "Invalid result from sandbox"
		return result, nil
	}

	result.RuntimeMs = parsed.RuntimeMs
	result.Stdout = sanitizeStderr(extractBetween(stdout.String(), delims.StdoutStart, delims.StdoutEnd))

	if parsed.Error != "" {
		result.Error = sanitizeStderr(parsed.Error)
		return result, nil
	}

	result.Actual = parsed.Actual
	result.Passed = parsed.Passed && deepEqual(parsed.Actual, tc.Expected)
	return result, nil
}

// killSignal reports the signal that terminated the child on the
// non-timeout exit path (a segfault, an OOM kill, a self-raised signal),
// distinct from both a clean exit and the Executor's own timeout kill.
func killSignal(waitErr error) (int, bool) {
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return 0, false
	}
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	return int(ws.Signal()), true
}

// killProcessGroup escalates SIGTERM -> KillGrace -> SIGKILL against the
// whole process group so a child that spawned its own children cannot
// survive the test's timeout.
func killProcessGroup(cmd *exec.Cmd, waitDone chan error) {
	pid := cmd.Process.Pid
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	select {
	case <-waitDone:
	case <-time.After(KillGrace):
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		<-waitDone
	}
}

// minimalEnv strips the parent process's environment entirely so no
// secret, credential, or path configured for the server leaks into
// untrusted code's subprocess.
func minimalEnv() []string {
	return []string{
		"PATH=/usr/bin:/bin",
		"LANG=C.UTF-8",
		"LC_ALL=C.UTF-8",
	}
}

func extractBetween(s, start, end string) string {
	si := strings.Index(s, start)
	if si < 0 {
		return ""
	}
	si += len(start)
	ei := strings.Index(s[si:], end)
	if ei < 0 {
		return ""
	}
	return s[si : si+ei]
}

func extractResultJSON(s string, d delimiterSet) (string, bool) {
	si := strings.Index(s, d.ResultStart)
	if si < 0 {
		return "", false
	}
	si += len(d.ResultStart)
	ei := strings.Index(s[si:], d.ResultEnd)
	if ei < 0 {
		return "", false
	}
	return strings.TrimSpace(s[si : si+ei]), true
}

// deepEqual compares Python-derived JSON values decoded through
// encoding/json on both sides, so numeric/string/bool/nil/slice/map shapes
// line up and reflect.DeepEqual is a correct structural comparison.
func deepEqual(actual, expected any) bool {
	return reflect.DeepEqual(actual, expected)
}
