package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures every API route spec §6 names.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/status", s.authStatus)
		r.Post("/login", s.login)

		r.Route("/problems", func(r chi.Router) {
			r.Get("/", s.listProblems)
			r.Get("/random", s.randomProblem)
			r.Get("/{problemID}", s.getProblem)
		})

		r.Post("/run", s.runCode)
		r.Post("/submit", s.submitCode)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Get("/latest-resumable", s.latestResumableSession)
			r.Get("/{sessionID}", s.getSession)
			r.Delete("/{sessionID}", s.deleteSession)
		})
	})

	r.Get("/ws/chat", s.serveWSChat)
}
