package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandUserTurn_HintGateAsksForSelfExplanation(t *testing.T) {
	a := &agentState{}
	got := a.expandUserTurn("__hint_gate__")
	assert.Contains(t, got, "explain what they've tried")
}

func TestExpandUserTurn_HintAbuseCarriesCoachingPrefix(t *testing.T) {
	a := &agentState{}
	got := a.expandUserTurn("__hint_abuse__:try running the tests first")
	assert.Contains(t, got, "try running the tests first")
	assert.Contains(t, got, "Do not advance the hint level")
}

func TestExpandUserTurn_HintRequestCarriesLevel(t *testing.T) {
	a := &agentState{}
	got := a.expandUserTurn("__hint_request__:level=2")
	assert.Contains(t, got, "level-2 hint")
}

func TestExpandUserTurn_PlainMessagePassesThrough(t *testing.T) {
	a := &agentState{}
	assert.Equal(t, "how do I iterate a dict?", a.expandUserTurn("how do I iterate a dict?"))
}

func TestModeInstructions_CoversEveryMode(t *testing.T) {
	assert.Contains(t, strings.ToLower(modeInstructions("interview")), "interviewer")
	assert.Contains(t, strings.ToLower(modeInstructions("pattern-quiz")), "pattern")
	assert.Contains(t, strings.ToLower(modeInstructions("learning")), "socratic")
	assert.Contains(t, strings.ToLower(modeInstructions("")), "socratic")
}

func TestSystemPrompt_IncludesProblemAndHintState(t *testing.T) {
	a := &agentState{ctx: contextPayload{
		ProblemTitle:  "Two Sum",
		Mode:          "learning",
		HintLevelName: "direction",
		HintsGiven:    2,
	}}
	got := a.systemPrompt()
	assert.Contains(t, got, "Two Sum")
	assert.Contains(t, got, "direction")
	assert.Contains(t, got, "Hints given so far: 2")
}
