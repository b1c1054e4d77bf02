// Package hint implements HintPolicy: the 5-level hint ladder, its abuse
// and avoidance signals, and the self-explanation gate guarding the
// bottom-out hint. It operates purely on types.HintState — the actual
// hint prompt text is content, not protocol: internal/tutor sends only a
// marker for the decision, and cmd/tutor-agent expands it into the prompt.
package hint

import (
	"time"

	"github.com/codecoach/leettutor/pkg/types"
)

// AbuseWindow is the lookback window for the repeated-request abuse check.
const AbuseWindow = 15 * time.Second

// SelfExplanationBypass is the elapsed-on-problem threshold past which the
// self-explanation gate no longer blocks the bottom-out hint.
const SelfExplanationBypass = 600 * time.Second

// Decision is what RequestHint/FlailingSignal/ConsumeGateResponse tell the
// caller to do next.
type Decision struct {
	// Level is the hint level to present (the state's level may or may not
	// have changed — see Escalated).
	Level types.HintLevel
	// Escalated is true when the ladder actually advanced.
	Escalated bool
	// CoachingPrefix is non-empty when an abuse coaching message should
	// precede the (unescalated) hint.
	CoachingPrefix string
	// AskSelfExplanation is true when the caller must present the gate
	// question instead of any hint — the student hasn't earned level 4 yet.
	AskSelfExplanation bool
}

// RequestHint processes one explicit request_hint call.
func RequestHint(state *types.HintState, now time.Time, elapsedOnProblem time.Duration, explicitDirectAnswer bool) Decision {
	nowMs := now.UnixMilli()
	state.RequestTimes = append(state.RequestTimes, nowMs)
	state.RequestTimes = trimOld(state.RequestTimes, nowMs, AbuseWindow)

	if isAbuse(state) {
		return Decision{Level: state.Level, CoachingPrefix: "apply the previous hint first"}
	}

	return escalate(state, elapsedOnProblem, explicitDirectAnswer)
}

// FlailingSignal advances one level on a NudgeDetector flailing trigger,
// bypassing the abuse check (it isn't a student-initiated request) but
// still subject to the self-explanation gate at level 4.
func FlailingSignal(state *types.HintState, elapsedOnProblem time.Duration) Decision {
	return escalate(state, elapsedOnProblem, false)
}

// ConsumeGateResponse is called when a pending self-explanation gate is
// answered by the student's next chat message. It delivers the bottom-out
// hint the earlier request was deferring.
func ConsumeGateResponse(state *types.HintState) Decision {
	if !state.SelfExplanationPending {
		return Decision{Level: state.Level}
	}
	state.SelfExplanationPending = false
	state.Level = types.HintLevelBottomOut
	state.TotalGiven++
	state.EditsSinceLastHint = 0
	return Decision{Level: types.HintLevelBottomOut, Escalated: true}
}

// ShouldOfferAvoidanceHelp reports the one-shot avoidance signal (spec
// §4.4: errors_without_hint >= 5). The caller must reset
// state.ErrorsWithoutHint after presenting the offer so it fires only
// once per streak.
func ShouldOfferAvoidanceHelp(state *types.HintState) bool {
	return state.ErrorsWithoutHint >= 5
}

func escalate(state *types.HintState, elapsedOnProblem time.Duration, explicitDirectAnswer bool) Decision {
	next := state.Level + 1
	if next > types.MaxHintLevel {
		next = types.MaxHintLevel
	}

	gated := next == types.HintLevelBottomOut &&
		!state.SelfExplanationPending &&
		elapsedOnProblem <= SelfExplanationBypass &&
		!explicitDirectAnswer

	if gated {
		state.SelfExplanationPending = true
		return Decision{Level: state.Level, AskSelfExplanation: true}
	}

	if next == types.HintLevelBottomOut {
		state.SelfExplanationPending = false
	}
	state.Level = next
	state.TotalGiven++
	state.EditsSinceLastHint = 0
	state.EverRequested = true
	return Decision{Level: next, Escalated: true}
}

func isAbuse(state *types.HintState) bool {
	return len(state.RequestTimes) >= 2 && state.EditsSinceLastHint == 0
}

func trimOld(times []int64, nowMs int64, window time.Duration) []int64 {
	cutoff := nowMs - window.Milliseconds()
	out := times[:0]
	for _, t := range times {
		if t >= cutoff {
			out = append(out, t)
		}
	}
	return out
}
