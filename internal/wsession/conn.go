// Package wsession implements WSSession: the per-connection WebSocket
// state machine that authenticates a client, routes its typed messages,
// serializes streaming tutor turns behind one mutex, and coordinates
// TutorAgent/HintPolicy/NudgeDetector/SessionLog/TutorRegistry for the
// lifetime of one browser connection.
//
// Grounded on go-memsh's cmd/webshell WebSocketIO: a read loop goroutine
// feeding a channel, and a thin interface over *websocket.Conn so tests
// can swap in a fake without a real socket.
package wsession

import "time"

// conn is the subset of *gorilla/websocket.Conn WSSession needs. Defining
// it here (rather than depending on *websocket.Conn directly everywhere)
// lets tests exercise the full dispatch logic against a fake in-memory
// implementation.
type conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
	SetReadDeadline(t time.Time) error
}
