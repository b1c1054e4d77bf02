package sessionlog

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

// idPattern is the strict filename shape spec §4.2 requires before any
// storage operation touches the path, closing off path traversal via a
// crafted session id.
var idPattern = regexp.MustCompile(`^[0-9a-f]{8,}$`)

// newSessionID returns a 16-hex-character random id, comfortably above
// the 8-char floor idPattern enforces.
func newSessionID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func validateSessionID(id string) error {
	if !idPattern.MatchString(id) {
		return ErrInvalidSessionID
	}
	return nil
}
