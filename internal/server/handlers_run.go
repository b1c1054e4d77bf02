package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/codecoach/leettutor/internal/catalog"
	"github.com/codecoach/leettutor/internal/sandbox"
	"github.com/codecoach/leettutor/pkg/types"
)

type runRequest struct {
	Code      string `json:"code"`
	ProblemID string `json:"problem_id"`
}

type submitRequest struct {
	Code      string     `json:"code"`
	ProblemID string     `json:"problem_id"`
	Mode      types.Mode `json:"mode,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
}

// runCode executes code against a problem's visible test cases only.
// Always 200 with a structured result, even when every case fails or the
// sandbox itself fails for a case (that case is reported as failed);
// only oversized code or an unknown problem gets an error status.
func (s *Server) runCode(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, KindInvalidMessage, "malformed request body")
		return
	}

	problem, err := s.catalog.Get(req.ProblemID)
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	summary, err := s.executor.RunTests(r.Context(), req.Code, problem.Helpers, problem.TestCases)
	if err != nil {
		writeExecutorError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// submitCode executes code against visible + hidden test cases, and
// records the attempt against a session if one is named.
func (s *Server) submitCode(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, KindInvalidMessage, "malformed request body")
		return
	}

	problem, err := s.catalog.Get(req.ProblemID)
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	cases := append(append([]types.TestCase{}, problem.TestCases...), problem.HiddenTestCases...)
	summary, err := s.executor.RunTests(r.Context(), req.Code, problem.Helpers, cases)
	if err != nil {
		writeExecutorError(w, err)
		return
	}

	if req.SessionID != "" {
		if err := s.logs.LogSubmission(r.Context(), req.SessionID, req.Code, true, *summary); err != nil {
			writeSessionLogError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeExecutorError(w http.ResponseWriter, err error) {
	if errors.Is(err, sandbox.ErrCodeTooLarge) {
		writeDetail(w, http.StatusRequestEntityTooLarge, KindInputTooLarge, err.Error())
		return
	}
	if errors.Is(err, catalog.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, KindCatalogError, err.Error())
		return
	}
	writeDetail(w, http.StatusInternalServerError, KindSandboxFailure, err.Error())
}
