package types

// HintLevel is one rung of the 5-level hint ladder (0..4).
type HintLevel int

const (
	HintLevelNone HintLevel = iota
	HintLevel1
	HintLevel2
	HintLevel3
	HintLevelBottomOut // level 4, gated by self-explanation
)

// MaxHintLevel is the ceiling HintPolicy.Level is capped at.
const MaxHintLevel = HintLevelBottomOut

// HintState is the mutable hint bookkeeping TutorAgent carries for one
// session. RequestTimes holds unix-millis of recent explicit requests, kept
// only long enough to evaluate the abuse window (15s).
type HintState struct {
	Level                HintLevel
	TotalGiven           int
	SelfExplanationPending bool
	RequestTimes         []int64
	EditsSinceLastHint   int
	ErrorsSinceLastHint  int
	ErrorsWithoutHint    int
	EverRequested        bool
}

// Reset clears all hint progress, used on new problem, solved submission,
// and end_session.
func (h *HintState) Reset() {
	*h = HintState{}
}
