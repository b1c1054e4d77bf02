package wsession

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecoach/leettutor/internal/tutor"
	"github.com/codecoach/leettutor/pkg/types"
)

func TestStreamTurn_ForwardsChunksAndReturnsConcatenatedContent(t *testing.T) {
	fc := &fakeConn{}
	s := New(Deps{}, fc)

	frag := make(chan tutor.Fragment, 3)
	frag <- tutor.Fragment{Text: "Hello, "}
	frag <- tutor.Fragment{Text: "world."}
	close(frag)

	content, err := s.streamTurn(frag)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world.", content)

	require.Len(t, fc.outbound, 2)
	first, ok := fc.outbound[0].(types.AssistantChunkFrame)
	require.True(t, ok)
	assert.Equal(t, "Hello, ", first.Content)
}

func TestStreamTurn_EmptyFragmentsAreSkipped(t *testing.T) {
	fc := &fakeConn{}
	s := New(Deps{}, fc)

	frag := make(chan tutor.Fragment, 2)
	frag <- tutor.Fragment{Text: ""}
	close(frag)

	content, err := s.streamTurn(frag)
	require.NoError(t, err)
	assert.Empty(t, content)
	assert.Empty(t, fc.outbound)
}

func TestStreamTurn_FailureBeforeAnyFragmentIsNotWrapped(t *testing.T) {
	fc := &fakeConn{}
	s := New(Deps{}, fc)

	cause := errors.New("boom")
	frag := make(chan tutor.Fragment, 1)
	frag <- tutor.Fragment{Err: cause}
	close(frag)

	_, err := s.streamTurn(frag)
	require.Error(t, err)
	var sf streamFailedErr
	assert.False(t, errors.As(err, &sf))
	assert.Equal(t, cause, err)
}

func TestStreamTurn_FailureAfterFragmentWrapsAsStreamFailed(t *testing.T) {
	fc := &fakeConn{}
	s := New(Deps{}, fc)

	cause := errors.New("boom mid-stream")
	frag := make(chan tutor.Fragment, 2)
	frag <- tutor.Fragment{Text: "partial"}
	frag <- tutor.Fragment{Err: cause}
	close(frag)

	content, err := s.streamTurn(frag)
	assert.Equal(t, "partial", content)
	require.Error(t, err)
	var sf streamFailedErr
	require.True(t, errors.As(err, &sf))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorCodeFor_ClassifiesStreamFailed(t *testing.T) {
	err := streamFailedErr{cause: errors.New("x")}
	assert.Equal(t, CodeAgentStreamFailed, errorCodeFor(err))
}

func TestErrorCodeFor_ClassifiesAgentUnavailable(t *testing.T) {
	assert.Equal(t, CodeAgentUnavailable, errorCodeFor(tutor.ErrAgentUnavailable))
}

func TestErrorCodeFor_ClassifiesTimeoutBySubstring(t *testing.T) {
	err := errors.New("turn abc: overall timeout")
	assert.Equal(t, CodeAgentTimeout, errorCodeFor(err))
}

func TestErrorCodeFor_DefaultsToAgentUnavailable(t *testing.T) {
	err := errors.New("subprocess closed stdout")
	assert.Equal(t, CodeAgentUnavailable, errorCodeFor(err))
}
