// Package tutor implements TutorAgent: the wrapper around the external
// conversational-agent subprocess (cmd/tutor-agent), exposing a streaming
// chat abstraction bound to one problem, mode, and workspace.
//
// Process lifecycle (captured stdio, reap-on-every-exit; no process group)
// is grounded on internal/tool/bash.go. The per-turn retry/backoff shape
// is grounded on internal/session/loop.go's cenkalti/backoff usage,
// simplified to this domain's much stricter policy: at most one retry,
// and only if the failed turn yielded zero fragments.
package tutor

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"

	"github.com/codecoach/leettutor/internal/hint"
	"github.com/codecoach/leettutor/pkg/types"
)

// ErrAgentUnavailable is returned by Open when the subprocess does not
// come up within the connect timeout.
var ErrAgentUnavailable = fmt.Errorf("tutor agent unavailable")

// ErrInputTooLarge is returned by Chat/RequestHint for oversized input.
var ErrInputTooLarge = fmt.Errorf("input exceeds 10 KB")

const (
	connectTimeout    = 15 * time.Second
	turnTimeout       = 60 * time.Second
	fragmentIdleLimit = 15 * time.Second
	maxUserContent    = 10 * 1024
	codeExcerptBudget = 4 * 1024
	sentinelEnvVar    = "LEETTUTOR_AGENT_SENTINEL"
)

// Fragment is one element of a Chat/RequestHint stream: either streamed
// text, or a terminal error. The channel closes after the first error or
// after the turn completes normally — the consumer owns draining it.
type Fragment struct {
	Text string
	Err  error
}

// Config is the static binding for one TutorAgent instance.
type Config struct {
	BinaryPath   string
	SessionID    string
	ProblemID    string
	ProblemTitle string
	Mode         types.Mode
	WorkspaceDir string
}

// TutorAgent owns one subprocess for the lifetime of a session (or until
// parked/closed). It is not safe for concurrent Chat/RequestHint calls —
// WSSession's per-connection mutex is what actually serializes turns, per
// spec; TutorAgent trusts that contract rather than re-enforcing it.
type TutorAgent struct {
	cfg Config

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     *bufio.Writer
	stdinPipe interface {
		Write([]byte) (int, error)
		Close() error
	}
	scanner *bufio.Scanner
	sentinel string
	closed   bool

	hint           types.HintState
	interviewPhase types.InterviewPhase
	timeRemainingS *int
	lastTestSummary string
}

// New returns a TutorAgent bound to cfg; Open must be called before use.
func New(cfg Config) *TutorAgent {
	return &TutorAgent{cfg: cfg}
}

// Sentinel returns the environment token this agent's subprocess was
// spawned with, the identity check scenario 5 relies on ("agent is the
// same subprocess, verified by a sentinel environment variable").
func (a *TutorAgent) Sentinel() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sentinel
}

// Open spawns the subprocess and waits for it to become ready.
func (a *TutorAgent) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(a.cfg.WorkspaceDir, 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	sentinel, err := randomHex(16)
	if err != nil {
		return err
	}

	cmd := exec.Command(a.cfg.BinaryPath)
	cmd.Dir = a.cfg.WorkspaceDir
	cmd.Env = append(os.Environ(), sentinelEnvVar+"="+sentinel)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	readyCh := make(chan error, 1)
	go func() { readyCh <- cmd.Start() }()

	select {
	case err := <-readyCh:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
		}
	case <-time.After(connectTimeout):
		return ErrAgentUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}

	a.cmd = cmd
	a.sentinel = sentinel
	a.stdin = bufio.NewWriter(stdinPipe)
	a.stdinPipe = stdinPipe
	a.scanner = bufio.NewScanner(stdoutPipe)
	a.scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	a.hint = types.HintState{}
	a.interviewPhase = types.PhaseClarification
	return nil
}

// Chat sends one user turn and streams the reply. It validates input
// size, rewrites the workspace snapshot, and applies the turn/idle
// timeouts and the single-retry-only-if-empty policy.
func (a *TutorAgent) Chat(ctx context.Context, turn types.ChatTurn) (<-chan Fragment, error) {
	if len(turn.UserContent) > maxUserContent {
		return nil, ErrInputTooLarge
	}
	if err := a.syncWorkspace(turn); err != nil {
		return nil, err
	}

	payload := chatPayload{
		Context:     a.buildContext(turn),
		UserContent: turn.UserContent,
	}
	return a.runTurn(ctx, turn.TurnID, msgChat, payload)
}

// RequestHint runs one turn for a hint.Decision the caller has already
// taken on the hint ladder. The turn carries a marker for the decision
// (self-explanation gate, abuse coaching, or the hint level) to the
// subprocess, which owns the actual prompt phrasing.
func (a *TutorAgent) RequestHint(ctx context.Context, codeSnapshot string, decision hint.Decision) (<-chan Fragment, error) {
	turn := types.ChatTurn{
		TurnID:       ulid.Make().String(),
		UserContent:  protocolMarker(decision),
		CodeSnapshot: codeSnapshot,
	}
	if err := a.syncWorkspace(turn); err != nil {
		return nil, err
	}
	payload := chatPayload{Context: a.buildContext(turn), UserContent: turn.UserContent}
	return a.runTurn(ctx, turn.TurnID, msgChat, payload)
}

// EnterReviewPhase transitions interview mode into the review phase.
// Idempotent: calling it again once already in review is a no-op.
func (a *TutorAgent) EnterReviewPhase(ctx context.Context) error {
	a.mu.Lock()
	if a.interviewPhase == types.PhaseReview {
		a.mu.Unlock()
		return nil
	}
	a.interviewPhase = types.PhaseReview
	a.mu.Unlock()

	line, err := encode(msgContext, "", a.contextSnapshot())
	if err != nil {
		return err
	}
	return a.writeLine(line)
}

// Resume re-seeds a fresh subprocess with prior chat history when the
// original agent could not be transparently reclaimed from the registry.
func (a *TutorAgent) Resume(ctx context.Context, history []types.ChatMessage) error {
	if err := a.Open(ctx); err != nil {
		return err
	}
	msgs := make([]historyMessage, len(history))
	for i, m := range history {
		msgs[i] = historyMessage{Role: m.Role, Content: m.Content}
	}
	line, err := encode(msgResume, "", resumePayload{History: msgs})
	if err != nil {
		return err
	}
	return a.writeLine(line)
}

// Close terminates the subprocess gracefully, falling back to ForceKill
// if it doesn't exit promptly. Idempotent.
func (a *TutorAgent) Close() error {
	a.mu.Lock()
	if a.closed || a.cmd == nil {
		a.closed = true
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cmd := a.cmd
	a.mu.Unlock()

	line, _ := encode(msgClose, "", struct{}{})
	_ = a.writeLine(line)
	_ = a.stdinPipe.Close()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(3 * time.Second):
		return a.ForceKill()
	}
}

// ForceKill is the aggressive shutdown path for a hung subprocess: it
// tracks the child PID at spawn time (cmd.Process) as the documented
// fallback, since the subprocess exposes no other shutdown API.
func (a *TutorAgent) ForceKill() error {
	a.mu.Lock()
	cmd := a.cmd
	a.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	_ = cmd.Process.Kill()
	_, err := cmd.Process.Wait()
	return err
}

// runTurn drives one protocol turn end to end, applying the overall/idle
// timeouts and the at-most-one-retry-if-empty policy.
func (a *TutorAgent) runTurn(ctx context.Context, turnID, msgType string, payload chatPayload) (<-chan Fragment, error) {
	out := make(chan Fragment)

	go func() {
		defer close(out)

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxElapsedTime = 0
		attempts := 0

		for {
			yielded, err := a.attemptTurn(ctx, turnID, msgType, payload, out)
			if err == nil {
				return
			}
			if yielded || attempts >= 1 {
				out <- Fragment{Err: err}
				return
			}
			attempts++
			time.Sleep(b.NextBackOff())
		}
	}()

	return out, nil
}

// attemptTurn runs one subprocess round trip for a turn, forwarding
// fragments to out as they arrive. It reports whether any fragment was
// yielded before a failure, which governs the retry decision.
func (a *TutorAgent) attemptTurn(ctx context.Context, turnID, msgType string, payload chatPayload, out chan<- Fragment) (yielded bool, err error) {
	line, err := encode(msgType, turnID, payload)
	if err != nil {
		return false, err
	}
	if err := a.writeLine(line); err != nil {
		return false, err
	}

	overall := time.NewTimer(turnTimeout)
	defer overall.Stop()
	idle := time.NewTimer(fragmentIdleLimit)
	defer idle.Stop()

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	stopForwarding := make(chan struct{})
	defer close(stopForwarding)
	go func() {
		a.mu.Lock()
		scanner := a.scanner
		a.mu.Unlock()
		for scanner.Scan() {
			buf := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- buf:
			case <-stopForwarding:
				return
			}
		}
		select {
		case scanErr <- scanner.Err():
		case <-stopForwarding:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return yielded, ctx.Err()
		case <-overall.C:
			return yielded, fmt.Errorf("turn %s: overall timeout", turnID)
		case <-idle.C:
			return yielded, fmt.Errorf("turn %s: idle timeout waiting for next fragment", turnID)
		case line, ok := <-lines:
			if !ok {
				continue
			}
			var env envelope
			if err := json.Unmarshal(line, &env); err != nil {
				continue
			}
			if env.TurnID != "" && env.TurnID != turnID {
				continue
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(fragmentIdleLimit)

			switch env.Type {
			case msgFragment:
				var fp fragmentPayload
				if err := json.Unmarshal(env.Data, &fp); err != nil {
					continue
				}
				out <- Fragment{Text: fp.Text}
				yielded = true
			case msgDone:
				return yielded, nil
			case msgError:
				var ep errorPayload
				_ = json.Unmarshal(env.Data, &ep)
				return yielded, fmt.Errorf("turn %s: %s", turnID, ep.Message)
			}
		case err := <-scanErr:
			if err != nil {
				return yielded, err
			}
			return yielded, fmt.Errorf("turn %s: subprocess closed stdout", turnID)
		}
	}
}

func (a *TutorAgent) writeLine(line []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stdin == nil {
		return fmt.Errorf("tutor agent not open")
	}
	if _, err := a.stdin.Write(line); err != nil {
		return err
	}
	if err := a.stdin.WriteByte('\n'); err != nil {
		return err
	}
	return a.stdin.Flush()
}

func (a *TutorAgent) syncWorkspace(turn types.ChatTurn) error {
	if turn.CodeSnapshot == "" {
		return nil
	}
	path := filepath.Join(a.cfg.WorkspaceDir, "solution.py")
	if err := os.WriteFile(path, []byte(turn.CodeSnapshot), 0644); err != nil {
		return fmt.Errorf("write workspace solution: %w", err)
	}
	if len(turn.TestResults) > 0 {
		data, err := json.MarshalIndent(turn.TestResults, "", "  ")
		if err == nil {
			_ = os.WriteFile(filepath.Join(a.cfg.WorkspaceDir, "test_results.json"), data, 0644)
		}
	}
	return nil
}

func (a *TutorAgent) buildContext(turn types.ChatTurn) contextPayload {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctxPayload := a.contextSnapshotLocked()
	ctxPayload.CodeExcerpt = excerpt(turn.CodeSnapshot, codeExcerptBudget)
	return ctxPayload
}

func (a *TutorAgent) contextSnapshot() contextPayload {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.contextSnapshotLocked()
}

func (a *TutorAgent) contextSnapshotLocked() contextPayload {
	return contextPayload{
		ProblemTitle:    a.cfg.ProblemTitle,
		Mode:            string(a.cfg.Mode),
		HintLevelName:   hintLevelName(a.hint.Level),
		HintsGiven:      a.hint.TotalGiven,
		TimeRemainingS:  a.timeRemainingS,
		InterviewPhase:  string(a.interviewPhase),
		LastTestSummary: a.lastTestSummary,
	}
}

// UpdateTimeRemaining/UpdateLastTestSummary let WSSession keep the next
// turn's context block current without a full Chat round trip.
func (a *TutorAgent) UpdateTimeRemaining(seconds int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timeRemainingS = &seconds
}

func (a *TutorAgent) UpdateLastTestSummary(summary string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastTestSummary = summary
}

// HintState returns a copy of the in-memory hint bookkeeping so HintPolicy
// callers can inspect/mutate it (WSSession owns the mutate-then-store
// round trip via MutateHintState).
func (a *TutorAgent) HintState() types.HintState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hint
}

// MutateHintState applies fn to the agent's hint bookkeeping under lock.
func (a *TutorAgent) MutateHintState(fn func(*types.HintState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.hint)
}

// protocolMarker turns a hint.Decision into a compact instruction tag for
// the subprocess to expand into an actual hint, coaching message, or
// self-explanation question — the phrasing itself is content the
// subprocess owns, not protocol this package dictates.
func protocolMarker(d hint.Decision) string {
	switch {
	case d.AskSelfExplanation:
		return "__hint_gate__"
	case d.CoachingPrefix != "":
		return "__hint_abuse__:" + d.CoachingPrefix
	default:
		return fmt.Sprintf("__hint_request__:level=%d", int(d.Level))
	}
}

func hintLevelName(l types.HintLevel) string {
	switch l {
	case types.HintLevelNone:
		return "none"
	case types.HintLevel1:
		return "nudge"
	case types.HintLevel2:
		return "direction"
	case types.HintLevel3:
		return "approach"
	case types.HintLevelBottomOut:
		return "bottom-out"
	default:
		return "none"
	}
}

func excerpt(code string, maxBytes int) string {
	if len(code) <= maxBytes {
		return code
	}
	return code[:maxBytes] + "...(truncated)"
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
