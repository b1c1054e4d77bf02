package catalog

import "errors"

// ErrUnsafeTemplate is wrapped by ValidateFunctionCall's returned errors.
var ErrUnsafeTemplate = errors.New("unsafe function_call template")

// ErrNotFound is returned by Catalog.Get for an unknown problem id.
var ErrNotFound = errors.New("problem not found")

// Error is the stable machine-readable error kind for catalog failures,
// surfaced as CatalogError per spec §7.
type Error struct {
	ProblemID string
	Cause     error
}

func (e *Error) Error() string {
	return "CatalogError: " + e.ProblemID + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }
