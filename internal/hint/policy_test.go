package hint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecoach/leettutor/pkg/types"
)

func withActivity(state *types.HintState) {
	state.EditsSinceLastHint = 1
}

func TestRequestHint_EscalatesThroughLevel3WithIntervalActivity(t *testing.T) {
	state := &types.HintState{}
	now := time.Unix(1000, 0)

	d := RequestHint(state, now, 0, false)
	require.True(t, d.Escalated)
	assert.Equal(t, types.HintLevel1, d.Level)
	withActivity(state)

	now = now.Add(20 * time.Second)
	d = RequestHint(state, now, 0, false)
	require.True(t, d.Escalated)
	assert.Equal(t, types.HintLevel2, d.Level)
	withActivity(state)

	now = now.Add(20 * time.Second)
	d = RequestHint(state, now, 0, false)
	require.True(t, d.Escalated)
	assert.Equal(t, types.HintLevel3, d.Level)
}

func TestRequestHint_FourthRequestWithoutActivityIsAbuse(t *testing.T) {
	state := &types.HintState{}
	now := time.Unix(1000, 0)

	RequestHint(state, now, 0, false)
	withActivity(state)
	now = now.Add(1 * time.Second)
	RequestHint(state, now, 0, false)
	withActivity(state)
	now = now.Add(1 * time.Second)
	d := RequestHint(state, now, 0, false)
	require.True(t, d.Escalated)
	assert.Equal(t, types.HintLevel3, d.Level)

	// No intervening activity this time, and within 15s of the third.
	now = now.Add(5 * time.Second)
	d = RequestHint(state, now, 0, false)
	assert.False(t, d.Escalated)
	assert.Equal(t, types.HintLevel3, d.Level)
	assert.NotEmpty(t, d.CoachingPrefix)
}

func TestRequestHint_Level4IsGatedBySelfExplanation(t *testing.T) {
	state := &types.HintState{Level: types.HintLevel3}
	now := time.Unix(1000, 0)

	d := RequestHint(state, now, 0, false)
	assert.False(t, d.Escalated)
	assert.True(t, d.AskSelfExplanation)
	assert.True(t, state.SelfExplanationPending)
	assert.Equal(t, types.HintLevel3, state.Level)

	d = ConsumeGateResponse(state)
	assert.True(t, d.Escalated)
	assert.Equal(t, types.HintLevelBottomOut, d.Level)
	assert.False(t, state.SelfExplanationPending)
	assert.Equal(t, 1, state.TotalGiven)
}

func TestRequestHint_Level4BypassedAfter600sElapsed(t *testing.T) {
	state := &types.HintState{Level: types.HintLevel3}
	d := RequestHint(state, time.Unix(1000, 0), 601*time.Second, false)
	assert.True(t, d.Escalated)
	assert.Equal(t, types.HintLevelBottomOut, d.Level)
	assert.False(t, d.AskSelfExplanation)
}

func TestRequestHint_Level4BypassedByExplicitDirectAnswerRequest(t *testing.T) {
	state := &types.HintState{Level: types.HintLevel3}
	d := RequestHint(state, time.Unix(1000, 0), 0, true)
	assert.True(t, d.Escalated)
	assert.Equal(t, types.HintLevelBottomOut, d.Level)
}

func TestFlailingSignal_AdvancesRegardlessOfRequestHistory(t *testing.T) {
	state := &types.HintState{}
	d := FlailingSignal(state, 0)
	assert.True(t, d.Escalated)
	assert.Equal(t, types.HintLevel1, d.Level)
}

func TestShouldOfferAvoidanceHelp_FiresAtThreshold(t *testing.T) {
	state := &types.HintState{ErrorsWithoutHint: 4}
	assert.False(t, ShouldOfferAvoidanceHelp(state))
	state.ErrorsWithoutHint = 5
	assert.True(t, ShouldOfferAvoidanceHelp(state))
}

func TestTotalGiven_OnlyIncrementsOnSuccessfulEscalation(t *testing.T) {
	state := &types.HintState{}
	now := time.Unix(1000, 0)
	RequestHint(state, now, 0, false)
	assert.Equal(t, 1, state.TotalGiven)

	// Abuse path: no escalation, total_given must not move.
	RequestHint(state, now.Add(time.Second), 0, false)
	before := state.TotalGiven
	d := RequestHint(state, now.Add(2*time.Second), 0, false)
	assert.False(t, d.Escalated)
	assert.Equal(t, before, state.TotalGiven)
}
