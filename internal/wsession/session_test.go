package wsession

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecoach/leettutor/pkg/types"
)

// fakeConn is an in-memory stand-in for *gorilla/websocket.Conn, letting
// dispatch/auth logic be exercised without a real socket.
type fakeConn struct {
	inbound  [][]byte
	pos      int
	outbound []any
	controls []controlCall
	closed   bool
}

type controlCall struct {
	msgType int
	data    []byte
}

var errConnExhausted = errors.New("fakeConn: no more inbound messages")

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	if f.pos >= len(f.inbound) {
		return 0, nil, errConnExhausted
	}
	msg := f.inbound[f.pos]
	f.pos++
	return 1, msg, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.outbound = append(f.outbound, string(data))
	return nil
}

func (f *fakeConn) WriteJSON(v any) error {
	f.outbound = append(f.outbound, v)
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.controls = append(f.controls, controlCall{msgType: messageType, data: data})
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) SetReadDeadline(t time.Time) error { return nil }

func jsonLine(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func (f *fakeConn) errorFrames() []types.ErrorFrame {
	var frames []types.ErrorFrame
	for _, o := range f.outbound {
		if ef, ok := o.(types.ErrorFrame); ok {
			frames = append(frames, ef)
		}
	}
	return frames
}

func TestRun_NoAuthConfiguredDispatchesImmediately(t *testing.T) {
	fc := &fakeConn{inbound: [][]byte{
		jsonLine(t, map[string]string{"type": "bogus"}),
	}}
	s := New(Deps{}, fc)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, errConnExhausted)

	frames := fc.errorFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, CodeInvalidMessage, frames[0].Code)
}

func TestRun_RejectsNonAuthFrameBeforeAuthenticating(t *testing.T) {
	fc := &fakeConn{inbound: [][]byte{
		jsonLine(t, map[string]string{"type": "message"}),
	}}
	s := New(Deps{AuthToken: "secret"}, fc)

	_ = s.Run(context.Background())

	frames := fc.errorFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, CodeAuthRequired, frames[0].Code)
}

func TestRun_WrongAuthTokenClosesWithAuthCloseCode(t *testing.T) {
	authFrame := struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	}{Type: types.ClientAuth, Token: "wrong"}

	fc := &fakeConn{inbound: [][]byte{jsonLine(t, authFrame)}}
	s := New(Deps{AuthToken: "secret"}, fc)
	err := s.Run(context.Background())

	assert.NoError(t, err)
	assert.True(t, fc.closed)
	require.Len(t, fc.controls, 1)
	assert.Equal(t, 8, fc.controls[0].msgType)
}

func TestRun_CorrectAuthTokenThenDispatches(t *testing.T) {
	authFrame := struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	}{Type: types.ClientAuth, Token: "secret"}

	fc := &fakeConn{inbound: [][]byte{
		jsonLine(t, authFrame),
		jsonLine(t, map[string]string{"type": "bogus"}),
	}}
	s := New(Deps{AuthToken: "secret"}, fc)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, errConnExhausted)
	assert.False(t, fc.closed)

	frames := fc.errorFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, CodeInvalidMessage, frames[0].Code)
}

func TestHandleAuth_ConstantTimeCompare(t *testing.T) {
	s := New(Deps{AuthToken: "correct-token"}, &fakeConn{})

	ok := s.handleAuth(jsonLine(t, types.AuthPayload{Token: "correct-token"}))
	assert.True(t, ok)

	s2 := New(Deps{AuthToken: "correct-token"}, &fakeConn{})
	ok2 := s2.handleAuth(jsonLine(t, types.AuthPayload{Token: "wrong-token"}))
	assert.False(t, ok2)
}

func TestActive_FalseWithoutSession(t *testing.T) {
	s := New(Deps{}, &fakeConn{})
	_, _, _, ok := s.active()
	assert.False(t, ok)
}

func TestSessionIDOnly_EmptyWhenNoSession(t *testing.T) {
	s := New(Deps{}, &fakeConn{})
	id, ok := s.sessionIDOnly()
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestElapsedOnProblem_ZeroBeforeStart(t *testing.T) {
	s := New(Deps{}, &fakeConn{})
	assert.Equal(t, time.Duration(0), s.elapsedOnProblem())
}
