package wsession

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/codecoach/leettutor/internal/catalog"
	"github.com/codecoach/leettutor/internal/logging"
	"github.com/codecoach/leettutor/internal/nudge"
	"github.com/codecoach/leettutor/internal/registry"
	"github.com/codecoach/leettutor/internal/sandbox"
	"github.com/codecoach/leettutor/internal/sessionlog"
	"github.com/codecoach/leettutor/internal/tutor"
	"github.com/codecoach/leettutor/pkg/types"
)

// interviewDuration is the 45-minute interview-mode cap spec.md §4.7
// names. timeUpdateBound clamps the client-reported countdown WSSession
// persists, per the same section.
const (
	interviewDuration = 45 * time.Minute
	timeUpdateBound   = 2700 // seconds
)

// Deps are the process-wide collaborators a WSSession needs; one Deps is
// shared across every connection (mirroring spec.md §5's "only the
// registry and catalog are process-wide shared state").
type Deps struct {
	Catalog          *catalog.Catalog
	Executor         *sandbox.Executor
	Logs             *sessionlog.SessionLog
	Registry         *registry.Registry
	AuthToken        string // empty disables the auth handshake
	TutorAgentBinary string
	WorkspaceRoot    string
	IdleNudgeThreshold time.Duration
}

// Session is one live /ws/chat connection's state machine.
type Session struct {
	deps Deps
	conn conn

	// streamMu serializes every call that streams assistant output —
	// chat, request_hint, enter_review_phase, and the start_session
	// greeting — per spec.md §4.7/§5. time_update/test_results_update/
	// nudge_request take it only while they stream an idle nudge,
	// avoidance offer or flailing hint; save_state never takes it.
	streamMu sync.Mutex

	// mu guards the fields below, touched by both the streaming and
	// non-streaming handlers.
	mu             sync.Mutex
	authenticated  bool
	sessionID      string
	problem        *types.Problem
	agent          *tutor.TutorAgent
	detector       *nudge.Detector
	startedAt      time.Time
	reviewDeadline time.Time
	stopBackstop   chan struct{}
}

// New returns a Session bound to one connection. Run drives it to
// completion (auth failure, end_session, or disconnect).
func New(deps Deps, c conn) *Session {
	return &Session{deps: deps, conn: c}
}

// Run is the connection's read loop: authenticate, then dispatch typed
// messages until the socket closes. It always attempts disconnect
// handling (park-or-close) before returning, even on a read error.
func (s *Session) Run(ctx context.Context) error {
	defer s.handleDisconnect(ctx)

	if !s.deps.requiresAuth() {
		s.mu.Lock()
		s.authenticated = true
		s.mu.Unlock()
	}

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}

		msgType, err := peekType(raw)
		if err != nil {
			s.sendError("", CodeInvalidMessage, "malformed message")
			continue
		}

		if !s.isAuthenticated() {
			if msgType != types.ClientAuth {
				s.sendError("", CodeAuthRequired, "auth required")
				continue
			}
			if !s.handleAuth(raw) {
				s.closeWithCode(authCloseCode, "authentication failed")
				return nil
			}
			continue
		}

		s.dispatch(ctx, msgType, raw)
	}
}

func (d Deps) requiresAuth() bool { return d.AuthToken != "" }

func (s *Session) isAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func peekType(raw []byte) (string, error) {
	msgType, _, err := types.UnmarshalClientMessage(raw)
	return msgType, err
}

func (s *Session) handleAuth(raw []byte) bool {
	var payload types.AuthPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}
	ok := subtle.ConstantTimeCompare([]byte(payload.Token), []byte(s.deps.AuthToken)) == 1
	if ok {
		s.mu.Lock()
		s.authenticated = true
		s.mu.Unlock()
	}
	return ok
}

// dispatch routes one inbound frame by its type discriminator. Streaming
// handlers acquire streamMu themselves; non-streaming ones do so only
// through the nudge/hint helpers they call.
func (s *Session) dispatch(ctx context.Context, msgType string, raw []byte) {
	switch msgType {
	case types.ClientStartSession:
		s.handleStartSession(ctx, raw)
	case types.ClientMessageChat:
		s.handleMessage(ctx, raw)
	case types.ClientRequestHint:
		s.handleRequestHint(ctx, raw)
	case types.ClientResumeSession:
		s.handleResumeSession(ctx, raw)
	case types.ClientEndSession:
		s.handleEndSession(ctx)
	case types.ClientTimeUpdate:
		s.handleTimeUpdate(ctx, raw)
	case types.ClientTimeUp:
		s.handleTimeUp(ctx)
	case types.ClientNudgeRequest:
		s.handleNudgeRequest(ctx, raw)
	case types.ClientTestResultsUpdate:
		s.handleTestResultsUpdate(ctx, raw)
	case types.ClientSaveState:
		s.handleSaveState(ctx, raw)
	default:
		s.sendError("", CodeInvalidMessage, "unknown message type: "+msgType)
	}
}

func (s *Session) sendError(turnID, code, content string) {
	_ = s.conn.WriteJSON(types.ErrorFrame{Type: types.ServerError, Code: code, Content: content})
	_ = turnID
}

func (s *Session) closeWithCode(code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = s.conn.Close()
}

// workspaceDir is the per-session directory TutorAgent's subprocess reads
// solution.py/test_results.json from (spec.md §6 on-disk layout).
func (s *Session) workspaceDir(sessionID string) string {
	return filepath.Join(s.deps.WorkspaceRoot, sessionID)
}

// turnID returns a fresh ULID for one TutorAgent turn.
func turnID() string { return ulid.Make().String() }

func (s *Session) logErrorf(sessionID, format string, args ...any) {
	logging.Error().Str("session_id", sessionID).Msg(fmt.Sprintf(format, args...))
}
