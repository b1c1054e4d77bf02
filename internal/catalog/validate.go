package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// forbiddenTokens are rejected anywhere in a function_call template. They
// cover the obvious routes to arbitrary code execution or introspection
// (spec §4.1): dunder access, imports, eval/exec/compile, and globals.
var forbiddenTokens = []string{
	"__", "import", "eval", "exec", "compile", "globals", "__builtins__",
}

// attrAllowList is the small set of attribute-access patterns a
// function_call template may use beyond a bare call, matched with
// doublestar so a single glob-style pattern can cover a family of
// catalog-authored helper accessors (e.g. "helpers.*").
var attrAllowList = []string{
	"helpers.*",
}

// callShape matches "name(...)" with a non-empty identifier name, the
// structural shape every function_call template must have.
var callShape = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\(.*\)$`)

// attrAccess finds "identifier.identifier" sequences so they can be
// checked against attrAllowList.
var attrAccess = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)+`)

// ValidateFunctionCall rejects any function_call template containing a
// forbidden token or an attribute-access pattern outside the allow-list.
// It runs once per test case at catalog load time, never on client input
// (the client never supplies function_call — see types.TestCase).
func ValidateFunctionCall(template string) error {
	lower := strings.ToLower(template)
	for _, tok := range forbiddenTokens {
		if strings.Contains(lower, tok) {
			return fmt.Errorf("%w: function_call contains forbidden token %q", ErrUnsafeTemplate, tok)
		}
	}

	if !callShape.MatchString(strings.TrimSpace(template)) {
		return fmt.Errorf("%w: function_call is not a simple call expression", ErrUnsafeTemplate)
	}

	for _, m := range attrAccess.FindAllString(template, -1) {
		allowed := false
		for _, pattern := range attrAllowList {
			if ok, _ := doublestar.Match(pattern, m); ok {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: attribute access %q is outside the allow-list", ErrUnsafeTemplate, m)
		}
	}

	return nil
}
