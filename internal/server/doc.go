// Package server provides the HTTP + WebSocket surface for the tutoring
// service: problem catalog browsing, sandboxed run/submit, session
// history, and the /ws/chat upgrade that hands a connection off to
// internal/wsession for the lifetime of one browser session.
//
// # Core Components
//
//   - HTTP Server: Chi-based router with middleware for CORS, logging, and
//     recovery, grounded on the same pattern an OpenCode-style API server
//     uses for its own request pipeline.
//   - Problem Catalog: read-only list/get/random endpoints backed by
//     internal/catalog.
//   - Sandbox Execution: /api/run and /api/submit delegate to
//     internal/sandbox.Executor, always returning 200 with a structured
//     result even when the student's code fails.
//   - Session History: /api/sessions endpoints backed by
//     internal/sessionlog.
//   - WebSocket Chat: /ws/chat upgrades to gorilla/websocket and starts
//     one internal/wsession.Session per connection.
//
// # Authentication
//
// When LEETTUTOR_PASSWORD is configured, /api/login exchanges the
// password for a bearer token; every other HTTP route (except
// /api/auth/status) requires that token in an Authorization header, and
// /ws/chat requires it as the connection's first frame. With no password
// configured, auth is disabled entirely — matching the WS handshake's
// own requiresAuth() check in internal/wsession.
//
// # Error envelope
//
// Every non-2xx HTTP response is `{"detail": "<Kind>: <message>"}`,
// never the nested {error:{code,message}} shape some peer APIs use.
package server
