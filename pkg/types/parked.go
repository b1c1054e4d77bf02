package types

// ParkedAgentHandle is the TutorRegistry's bookkeeping record for one
// suspended session. AgentHandle is an opaque any so pkg/types does not
// need to import internal/tutor (which in turn depends on pkg/types).
type ParkedAgentHandle struct {
	SessionID   string
	AgentHandle any
	ParkedAt    int64
	ProblemID   string
}
