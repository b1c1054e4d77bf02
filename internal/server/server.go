package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/codecoach/leettutor/internal/catalog"
	"github.com/codecoach/leettutor/internal/logging"
	"github.com/codecoach/leettutor/internal/registry"
	"github.com/codecoach/leettutor/internal/sandbox"
	"github.com/codecoach/leettutor/internal/sessionlog"
	"github.com/codecoach/leettutor/internal/wsession"
)

// defaultIdleNudgeThreshold is the 2-minute default spec §5 names; 0
// disables the idle nudge entirely.
const defaultIdleNudgeThreshold = 2 * time.Minute

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	CorsOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:         "localhost",
		Port:         8000,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
	}
}

// Server is the HTTP + WebSocket server.
type Server struct {
	config    *Config
	router    *chi.Mux
	httpSrv   *http.Server
	catalog   *catalog.Catalog
	executor  *sandbox.Executor
	logs      *sessionlog.SessionLog
	registry  *registry.Registry
	password  string
	authToken string
	wsDeps    wsession.Deps
	upgrader  websocket.Upgrader
}

// New creates a new Server instance. password enables the auth handshake
// when non-empty (spec §6: LEETTUTOR_PASSWORD); tutorAgentBinary and
// workspaceRoot are forwarded to every wsession.Session's Deps.
func New(cfg *Config, cat *catalog.Catalog, exec *sandbox.Executor, logs *sessionlog.SessionLog, reg *registry.Registry, password, tutorAgentBinary, workspaceRoot string) *Server {
	r := chi.NewRouter()

	var authToken string
	if password != "" {
		authToken = ulid.Make().String()
	}

	s := &Server{
		config:    cfg,
		router:    r,
		catalog:   cat,
		executor:  exec,
		logs:      logs,
		registry:  reg,
		password:  password,
		authToken: authToken,
		wsDeps: wsession.Deps{
			Catalog:            cat,
			Executor:           exec,
			Logs:               logs,
			Registry:           reg,
			AuthToken:          authToken,
			TutorAgentBinary:   tutorAgentBinary,
			WorkspaceRoot:      workspaceRoot,
			IdleNudgeThreshold: defaultIdleNudgeThreshold,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin is enforced by the CORS allowlist on the HTTP surface;
			// the WS upgrade itself is gated by the auth handshake instead.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// AuthRequired reports whether the configured password enables the auth
// handshake.
func (s *Server) AuthRequired() bool { return s.password != "" }

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	// CORS: an explicit origin allowlist only, per spec §6 — no wildcard
	// fallback, unlike an OpenCode-style dev server.
	if len(s.config.CorsOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s.router.Use(s.requireAuth)
}

// publicRoutes never require the bearer token, even when auth is enabled
// — /api/auth/status lets a client discover whether to prompt for a
// password, and /api/login is how it exchanges one for a token.
var publicRoutes = map[string]bool{
	"/api/auth/status": true,
	"/api/login":       true,
}

// requireAuth gates every other HTTP route behind the same token the WS
// handshake checks, compared in constant time.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.AuthRequired() || publicRoutes[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			writeDetail(w, http.StatusUnauthorized, KindAuthRequired, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	logging.Info().Str("addr", s.httpSrv.Addr).Msg("server listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
