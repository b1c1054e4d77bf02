// Package nudge implements NudgeDetector: from editor-activity and
// test-result signals pushed by the client, decide when WSSession should
// emit an unsolicited tutor nudge (idle, flailing) or suppress one
// (wait-time, solved, review phase, parked).
package nudge

import (
	"regexp"
	"strings"
	"time"

	"github.com/codecoach/leettutor/pkg/types"
)

// IdleCooldown is the minimum gap between consecutive idle nudges.
const IdleCooldown = 2 * time.Minute

// IdleMaxConsecutive caps idle nudges fired without intervening real
// activity.
const IdleMaxConsecutive = 3

// IdleHardStop is the point past which no more idle nudges fire at all,
// regardless of the cooldown/consecutive-count rules.
const IdleHardStop = 30 * time.Minute

// FlailingWindow is the lookback window for the same-error-kind check.
const FlailingWindow = 5 * time.Minute

// FlailingErrorCount is how many same-kind errors within FlailingWindow
// trigger the flailing signal.
const FlailingErrorCount = 3

// WaitTimeSuppress is the post-question silence window during which no
// nudges may be emitted.
const WaitTimeSuppress = 5 * time.Second

// DefaultIdleThreshold is the default idle nudge threshold T; 0 disables
// idle nudges entirely.
const DefaultIdleThreshold = 2 * time.Minute

var errorKindPattern = regexp.MustCompile(`^(\w+Error)`)

// NormalizeErrorKind reduces an error message to the signal FlailingSignal
// compares: the leading "SomethingError" token if present, else the first
// 60 characters.
func NormalizeErrorKind(errMsg string) string {
	if m := errorKindPattern.FindString(errMsg); m != "" {
		return m
	}
	if len(errMsg) > 60 {
		return errMsg[:60]
	}
	return errMsg
}

type errorEvent struct {
	kind string
	at   time.Time
}

// Detector holds the per-session activity/error history NudgeDetector
// needs. One Detector per WSSession; it is not safe for concurrent use
// (WSSession already serializes access to its own state).
type Detector struct {
	mode          types.Mode
	idleThreshold time.Duration

	lastActivity        time.Time
	consecutiveIdle      int
	idleStreakStartedAt  time.Time
	lastIdleNudgeAt      time.Time

	errors []errorEvent

	suppressUntil time.Time

	solved   bool
	inReview bool
	parked   bool
}

// New returns a Detector using the given idle threshold (0 disables idle
// nudges) and an initial activity timestamp of now. Nudges (idle and
// flailing) are spec §4.5 learning-mode-only behavior: for any mode other
// than types.ModeLearning, ShouldNudgeIdle and ShouldTriggerFlailing always
// report false, regardless of threshold or error history.
func New(mode types.Mode, idleThreshold time.Duration, now time.Time) *Detector {
	if idleThreshold <= 0 {
		idleThreshold = 0
	}
	return &Detector{mode: mode, idleThreshold: idleThreshold, lastActivity: now, idleStreakStartedAt: now}
}

// RecordActivity resets the idle clock and the consecutive-idle-nudge
// counter — any real editor activity counts as "intervening activity".
func (d *Detector) RecordActivity(now time.Time) {
	d.lastActivity = now
	d.consecutiveIdle = 0
	d.idleStreakStartedAt = now
}

// RecordError appends a normalized error observation for the flailing
// check and clears wait-time suppression (a submission is real activity).
func (d *Detector) RecordError(now time.Time, rawErr string) {
	d.errors = append(d.errors, errorEvent{kind: NormalizeErrorKind(rawErr), at: now})
	d.trimErrors(now)
	d.suppressUntil = time.Time{}
}

// RecordUserMessage clears wait-time suppression — a user message is
// activity regardless of its content.
func (d *Detector) RecordUserMessage() {
	d.suppressUntil = time.Time{}
}

// RecordTutorMessage starts the wait-time suppression window if the
// tutor's message ended with '?'.
func (d *Detector) RecordTutorMessage(now time.Time, content string) {
	if strings.HasSuffix(strings.TrimSpace(content), "?") {
		d.suppressUntil = now.Add(WaitTimeSuppress)
	}
}

// SetSolved/SetReviewPhase/SetParked toggle the conditions that suppress
// all nudges outright.
func (d *Detector) SetSolved(solved bool)     { d.solved = solved }
func (d *Detector) SetReviewPhase(in bool)    { d.inReview = in }
func (d *Detector) SetParked(parked bool)     { d.parked = parked }

// ShouldNudgeIdle reports whether an idle nudge should fire now.
func (d *Detector) ShouldNudgeIdle(now time.Time) bool {
	if d.suppressed(now) || d.idleThreshold == 0 {
		return false
	}
	idleFor := now.Sub(d.lastActivity)
	if idleFor < d.idleThreshold {
		return false
	}
	if now.Sub(d.idleStreakStartedAt) > IdleHardStop {
		return false
	}
	if d.consecutiveIdle >= IdleMaxConsecutive {
		return false
	}
	if !d.lastIdleNudgeAt.IsZero() && now.Sub(d.lastIdleNudgeAt) < IdleCooldown {
		return false
	}
	return true
}

// MarkIdleNudgeSent records that an idle nudge was just emitted, advancing
// the cooldown and consecutive-count bookkeeping.
func (d *Detector) MarkIdleNudgeSent(now time.Time) {
	d.lastIdleNudgeAt = now
	d.consecutiveIdle++
}

// ShouldTriggerFlailing reports whether the last FlailingErrorCount errors
// within FlailingWindow share a normalized kind.
func (d *Detector) ShouldTriggerFlailing(now time.Time) bool {
	if d.suppressed(now) {
		return false
	}
	d.trimErrors(now)
	if len(d.errors) < FlailingErrorCount {
		return false
	}
	recent := d.errors[len(d.errors)-FlailingErrorCount:]
	kind := recent[0].kind
	for _, e := range recent[1:] {
		if e.kind != kind {
			return false
		}
	}
	return true
}

// ConsumeFlailingTrigger clears the error history after a flailing nudge
// has been escalated, so the same three errors don't re-trigger.
func (d *Detector) ConsumeFlailingTrigger() {
	d.errors = nil
}

func (d *Detector) suppressed(now time.Time) bool {
	if d.mode != types.ModeLearning {
		return true
	}
	if d.solved || d.inReview || d.parked {
		return true
	}
	return !d.suppressUntil.IsZero() && now.Before(d.suppressUntil)
}

func (d *Detector) trimErrors(now time.Time) {
	cutoff := now.Add(-FlailingWindow)
	i := 0
	for ; i < len(d.errors); i++ {
		if d.errors[i].at.After(cutoff) {
			break
		}
	}
	d.errors = d.errors[i:]
}
