package sandbox

import (
	"path"
	"regexp"
)

// absPath matches Unix-style absolute paths so stderr text (tracebacks,
// OS error messages) never leaks the host filesystem layout to a client.
var absPath = regexp.MustCompile(`/[A-Za-z0-9_./-]*`)

// sanitizeStderr strips absolute filesystem paths from captured stderr
// before it is attached to a TestResult or surfaced in an error message,
// replacing each with <sandbox>/<basename> so line numbers and the file
// being referenced stay legible without leaking the host layout.
func sanitizeStderr(s string) string {
	return absPath.ReplaceAllStringFunc(s, func(m string) string {
		return "<sandbox>/" + path.Base(m)
	})
}
