package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codecoach/leettutor/internal/catalog"
)

func (s *Server) listProblems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.List())
}

func (s *Server) getProblem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "problemID")
	p, err := s.catalog.Get(id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) randomProblem(w http.ResponseWriter, r *http.Request) {
	difficulty := r.URL.Query().Get("difficulty")
	tag := r.URL.Query().Get("tag")

	p, err := s.catalog.Random(difficulty, tag)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeCatalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, KindCatalogError, "problem not found")
		return
	}
	writeDetail(w, http.StatusInternalServerError, KindCatalogError, err.Error())
}
