package sessionlog

import "errors"

// ErrInvalidSessionID is returned when a caller-supplied id fails the
// strict filename pattern, before any filesystem operation is attempted.
var ErrInvalidSessionID = errors.New("invalid session id")

// ErrNotFound is returned by Get/mutators for an unknown session id.
var ErrNotFound = errors.New("session not found")

// ErrAlreadyEnded is returned by mutators called after End.
var ErrAlreadyEnded = errors.New("session already ended")
