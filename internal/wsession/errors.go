package wsession

// Machine-readable error codes surfaced in WS error frames and (via the
// HTTP layer) the `{detail}` envelope, matching spec.md §7's named error
// kinds.
const (
	CodeInputTooLarge    = "INPUT_TOO_LARGE"
	CodeInvalidMessage   = "INVALID_MESSAGE"
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodeAgentUnavailable = "AGENT_UNAVAILABLE"
	CodeAgentTimeout     = "AGENT_TIMEOUT"
	CodeAgentStreamFailed = "AGENT_STREAM_FAILED"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeSandboxFailure   = "SANDBOX_FAILURE"
	CodeCatalogError     = "CATALOG_ERROR"
)

// authCloseCode is the WS close code for a failed auth handshake — no
// reconnect should be attempted by the client on this code.
const authCloseCode = 4001
