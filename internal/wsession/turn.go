package wsession

import (
	"errors"
	"strings"

	"github.com/codecoach/leettutor/internal/tutor"
	"github.com/codecoach/leettutor/pkg/types"
)

// streamFailedErr marks a turn that failed after at least one fragment
// had already reached the client — spec.md §4.3: "never retry a
// partially streamed turn", and §4.8 maps this case to AGENT_STREAM_FAILED
// rather than AGENT_UNAVAILABLE/AGENT_TIMEOUT.
type streamFailedErr struct{ cause error }

func (e streamFailedErr) Error() string { return e.cause.Error() }
func (e streamFailedErr) Unwrap() error { return e.cause }

// streamTurn drains frag, forwarding each non-empty fragment as an
// assistant_chunk frame, and returns the concatenated content. The
// streamMu caller already holds the connection's streaming lock so no
// other turn's frames can interleave (spec.md §4.7/§8: "every
// assistant_chunk/assistant_message pair for turn N completes before any
// frame of turn N+1 begins").
func (s *Session) streamTurn(frag <-chan tutor.Fragment) (string, error) {
	var content strings.Builder
	yielded := false

	for f := range frag {
		if f.Err != nil {
			if yielded {
				return content.String(), streamFailedErr{f.Err}
			}
			return content.String(), f.Err
		}
		if f.Text == "" {
			continue
		}
		content.WriteString(f.Text)
		yielded = true
		_ = s.conn.WriteJSON(types.AssistantChunkFrame{Type: types.ServerAssistantChunk, Content: f.Text})
	}
	return content.String(), nil
}

// errorCodeFor classifies a streamTurn failure into the stable codes
// spec.md §4.8's failure table names.
func errorCodeFor(err error) string {
	var sf streamFailedErr
	switch {
	case errors.As(err, &sf):
		return CodeAgentStreamFailed
	case errors.Is(err, tutor.ErrAgentUnavailable):
		return CodeAgentUnavailable
	case strings.Contains(err.Error(), "timeout"):
		return CodeAgentTimeout
	default:
		return CodeAgentUnavailable
	}
}
