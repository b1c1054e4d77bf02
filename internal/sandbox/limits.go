// Package sandbox implements the Executor: it runs untrusted user code
// against trusted test cases inside a resource-limited subprocess, killing
// the whole process group on timeout, and returns deterministic per-test
// records. Grounded on the teacher's tool/bash.go process-group/signal-kill
// pattern, generalized from a one-shot command to a per-test-case Python
// subprocess with resource limits set inside the child itself.
package sandbox

import "time"

// Limits are the resource caps spec §4.1 requires, applied by the
// generated wrapper inside the child process (never via a Go-side
// pre-exec hook, to avoid multi-threaded runtime hazards in the parent).
type Limits struct {
	AddressSpaceMiB int
	CPUSeconds      int
	MaxFDs          int
	FileSizeMiB     int
	MaxProcesses    int
	WallClock       time.Duration
}

// DefaultLimits are the numbers spec §4.1 names explicitly.
func DefaultLimits() Limits {
	return Limits{
		AddressSpaceMiB: 512,
		CPUSeconds:      10,
		MaxFDs:          64,
		FileSizeMiB:     1,
		MaxProcesses:    32,
		WallClock:       10 * time.Second,
	}
}

// KillGrace is the pause between SIGTERM and SIGKILL when a process group
// must be force-killed on timeout.
const KillGrace = 200 * time.Millisecond

// MaxCodeBytes is the input size ceiling from spec §4.1 ("code <= 50 KB").
const MaxCodeBytes = 50 * 1024
