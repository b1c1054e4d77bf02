package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codecoach/leettutor/internal/sessionlog"
)

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.logs.List(r.Context())
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, KindSessionNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	doc, err := s.logs.Get(r.Context(), id)
	if err != nil {
		writeSessionLogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.logs.Delete(r.Context(), id); err != nil {
		writeSessionLogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type resumableResponse struct {
	Resumable bool   `json:"resumable"`
	SessionID string `json:"session_id,omitempty"`
}

// latestResumableSession finds the most recently started, not-yet-ended
// session for a problem, so a client can offer "resume where you left
// off" instead of starting fresh.
func (s *Server) latestResumableSession(w http.ResponseWriter, r *http.Request) {
	problemID := r.URL.Query().Get("problem_id")

	summaries, err := s.logs.List(r.Context())
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, KindSessionNotFound, err.Error())
		return
	}

	for _, sum := range summaries {
		if sum.EndedAt != nil {
			continue
		}
		if problemID != "" && sum.ProblemID != problemID {
			continue
		}
		writeJSON(w, http.StatusOK, resumableResponse{Resumable: true, SessionID: sum.SessionID})
		return
	}

	writeJSON(w, http.StatusOK, resumableResponse{Resumable: false})
}

func writeSessionLogError(w http.ResponseWriter, err error) {
	if errors.Is(err, sessionlog.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, KindSessionNotFound, "session not found")
		return
	}
	if errors.Is(err, sessionlog.ErrInvalidSessionID) {
		writeDetail(w, http.StatusBadRequest, KindInvalidMessage, "invalid session id")
		return
	}
	writeDetail(w, http.StatusInternalServerError, KindSessionNotFound, err.Error())
}
