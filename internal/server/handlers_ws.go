package server

import (
	"net/http"

	"github.com/codecoach/leettutor/internal/logging"
	"github.com/codecoach/leettutor/internal/wsession"
)

// serveWSChat upgrades the connection and hands it to a fresh
// wsession.Session for its entire lifetime; auth (when enabled) happens
// as the session's required first frame, not at upgrade time, matching
// spec §6's "auth required as first frame".
func (s *Server) serveWSChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := wsession.New(s.wsDeps, conn)
	if err := sess.Run(r.Context()); err != nil {
		logging.Debug().Err(err).Msg("websocket session ended")
	}
}
