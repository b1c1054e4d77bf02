package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

type authStatusResponse struct {
	AuthRequired bool `json:"auth_required"`
}

func (s *Server) authStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, authStatusResponse{AuthRequired: s.AuthRequired()})
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if !s.AuthRequired() {
		writeJSON(w, http.StatusOK, loginResponse{Token: ""})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, KindInvalidMessage, "malformed request body")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.password)) != 1 {
		writeDetail(w, http.StatusUnauthorized, KindAuthRequired, "incorrect password")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: s.authToken})
}
