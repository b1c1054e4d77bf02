package types

// Mode is the practice mode a session was started in.
type Mode string

const (
	ModeLearning    Mode = "learning"
	ModeInterview   Mode = "interview"
	ModePatternQuiz Mode = "pattern-quiz"
)

// InterviewPhase is the monotone phase state machine for interview mode.
// It only ever advances clarification -> coding -> review, never back.
type InterviewPhase string

const (
	PhaseClarification InterviewPhase = "clarification"
	PhaseCoding        InterviewPhase = "coding"
	PhaseReview        InterviewPhase = "review"
)

// phaseRank gives InterviewPhase a total order so callers can reject
// backward transitions without a switch statement at every call site.
var phaseRank = map[InterviewPhase]int{
	PhaseClarification: 0,
	PhaseCoding:        1,
	PhaseReview:        2,
}

// AdvancesFrom reports whether moving from prev to p is a legal (non-backward)
// transition, including the no-op case.
func (p InterviewPhase) AdvancesFrom(prev InterviewPhase) bool {
	return phaseRank[p] >= phaseRank[prev]
}

// ChatMessage is one entry of a session's persisted chat history.
type ChatMessage struct {
	Role      string `json:"role"` // "user" | "assistant" | "system"
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// CodeSubmission is one recorded run/submit attempt.
type CodeSubmission struct {
	Code       string       `json:"code"`
	IsSubmit   bool         `json:"is_submit"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Results    []TestResult `json:"results"`
	SubmittedAt int64       `json:"submitted_at"`
}

// Session is the durable, resumable record of one tutoring session. It is
// owned exclusively by SessionLog on disk and mirrored in memory by
// WSSession while the connection is live.
type Session struct {
	SessionID        string           `json:"session_id"`
	ProblemID        string           `json:"problem_id"`
	Mode             Mode             `json:"mode"`
	StartedAt        int64            `json:"started_at"`
	EndedAt          *int64           `json:"ended_at,omitempty"`
	DurationS        *int64           `json:"duration_s,omitempty"`
	HintsRequested   int              `json:"hints_requested"`
	ChatHistory      []ChatMessage    `json:"chat_history"`
	CodeSubmissions  []CodeSubmission `json:"code_submissions"`
	InterviewPhase   InterviewPhase   `json:"interview_phase,omitempty"`
	TimeRemainingS   int              `json:"time_remaining_s,omitempty"`
	LastEditorCode   string           `json:"last_editor_code,omitempty"`
	WhiteboardState  string           `json:"whiteboard_state,omitempty"`
	SavedSolutions   []string         `json:"saved_solutions,omitempty"`
	FinalResult      string           `json:"final_result,omitempty"`
	Notes            string           `json:"notes,omitempty"`
}

// SessionSummary is the trimmed view returned by SessionLog.List.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	ProblemID string `json:"problem_id"`
	Mode      Mode   `json:"mode"`
	StartedAt int64  `json:"started_at"`
	EndedAt   *int64 `json:"ended_at,omitempty"`
}

// ChatTurn is the transient unit of work TutorAgent processes for one
// "message" or "request_hint" call; it is never persisted directly, only
// its resulting ChatMessage entries are.
type ChatTurn struct {
	TurnID      string
	UserContent string
	CodeSnapshot string
	TestResults []TestResult
}
