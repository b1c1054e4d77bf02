package nudge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/codecoach/leettutor/pkg/types"
)

func TestShouldNudgeIdle_FiresPastThreshold(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(types.ModeLearning, 2*time.Minute, start)

	assert.False(t, d.ShouldNudgeIdle(start.Add(time.Minute)))
	assert.True(t, d.ShouldNudgeIdle(start.Add(3*time.Minute)))
}

func TestShouldNudgeIdle_DisabledWhenThresholdZero(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(types.ModeLearning, 0, start)
	assert.False(t, d.ShouldNudgeIdle(start.Add(time.Hour)))
}

func TestShouldNudgeIdle_RespectsCooldownAndMaxConsecutive(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(types.ModeLearning, 1*time.Minute, start)

	now := start.Add(2 * time.Minute)
	require := assert.New(t)
	require.True(d.ShouldNudgeIdle(now))
	d.MarkIdleNudgeSent(now)

	// Within cooldown: suppressed even though still idle.
	require.False(d.ShouldNudgeIdle(now.Add(30 * time.Second)))

	now = now.Add(2 * time.Minute)
	require.True(d.ShouldNudgeIdle(now))
	d.MarkIdleNudgeSent(now)
	now = now.Add(2 * time.Minute)
	require.True(d.ShouldNudgeIdle(now))
	d.MarkIdleNudgeSent(now)

	// Third consecutive nudge already sent (max 3); a fourth must not fire
	// without intervening real activity.
	now = now.Add(2 * time.Minute)
	require.False(d.ShouldNudgeIdle(now))
}

func TestShouldNudgeIdle_ActivityResetsConsecutiveCount(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(types.ModeLearning, 1*time.Minute, start)

	now := start.Add(2 * time.Minute)
	d.MarkIdleNudgeSent(now)
	d.MarkIdleNudgeSent(now)
	d.MarkIdleNudgeSent(now)

	d.RecordActivity(now)
	assert.True(t, d.ShouldNudgeIdle(now.Add(2*time.Minute)))
}

func TestShouldNudgeIdle_HardStopAfter30Minutes(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(types.ModeLearning, 1*time.Minute, start)
	assert.False(t, d.ShouldNudgeIdle(start.Add(31*time.Minute)))
}

func TestShouldTriggerFlailing_SameKindWithinWindow(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(types.ModeLearning, DefaultIdleThreshold, start)

	d.RecordError(start, "IndexError: list index out of range")
	assert.False(t, d.ShouldTriggerFlailing(start))
	d.RecordError(start.Add(time.Minute), "IndexError: list index out of range")
	assert.False(t, d.ShouldTriggerFlailing(start.Add(time.Minute)))
	d.RecordError(start.Add(2*time.Minute), "IndexError: different message")
	assert.True(t, d.ShouldTriggerFlailing(start.Add(2*time.Minute)))
}

func TestShouldTriggerFlailing_DifferentKindsDoNotTrigger(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(types.ModeLearning, DefaultIdleThreshold, start)

	d.RecordError(start, "IndexError: oops")
	d.RecordError(start, "TypeError: oops")
	d.RecordError(start, "ValueError: oops")
	assert.False(t, d.ShouldTriggerFlailing(start))
}

func TestShouldTriggerFlailing_OutsideWindowExpires(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(types.ModeLearning, DefaultIdleThreshold, start)

	d.RecordError(start, "IndexError: a")
	d.RecordError(start, "IndexError: b")
	d.RecordError(start.Add(6*time.Minute), "IndexError: c")
	assert.False(t, d.ShouldTriggerFlailing(start.Add(6*time.Minute)))
}

func TestWaitTime_SuppressesAfterTutorQuestion(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(types.ModeLearning, 0, start)
	d.idleThreshold = time.Second // force a short threshold to test suppression window precisely
	d.RecordTutorMessage(start, "Have you considered a hash map?")

	assert.False(t, d.ShouldNudgeIdle(start.Add(2*time.Second)))
	assert.True(t, d.ShouldNudgeIdle(start.Add(6*time.Second)))
}

func TestWaitTime_ClearedByUserMessage(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(types.ModeLearning, time.Second, start)
	d.RecordTutorMessage(start, "What's your approach?")
	d.RecordUserMessage()
	assert.True(t, d.ShouldNudgeIdle(start.Add(2*time.Second)))
}

func TestSuppressedStates_BlockAllNudges(t *testing.T) {
	start := time.Unix(1000, 0)
	d := New(types.ModeLearning, time.Second, start)
	d.SetSolved(true)
	assert.False(t, d.ShouldNudgeIdle(start.Add(time.Minute)))

	d.SetSolved(false)
	d.SetParked(true)
	assert.False(t, d.ShouldNudgeIdle(start.Add(time.Minute)))
}

func TestNonLearningMode_SuppressesAllNudges(t *testing.T) {
	start := time.Unix(1000, 0)

	for _, mode := range []types.Mode{types.ModeInterview, types.ModePatternQuiz} {
		d := New(mode, time.Second, start)
		assert.False(t, d.ShouldNudgeIdle(start.Add(time.Minute)), "mode %s", mode)

		d.RecordError(start, "IndexError: a")
		d.RecordError(start, "IndexError: b")
		d.RecordError(start, "IndexError: c")
		assert.False(t, d.ShouldTriggerFlailing(start), "mode %s", mode)
	}
}

func TestNormalizeErrorKind_PrefersErrorSuffixPattern(t *testing.T) {
	assert.Equal(t, "IndexError", NormalizeErrorKind("IndexError: list index out of range"))
}

func TestNormalizeErrorKind_FallsBackToPrefix(t *testing.T) {
	msg := "some very long message with no recognizable error class name at all and more text past 60 chars"
	got := NormalizeErrorKind(msg)
	assert.Equal(t, msg[:60], got)
}
