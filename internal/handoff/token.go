package handoff

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// tokenBytes gives 72 bits of entropy and a 12-character token, well
// past the point where collisions matter for the record volume of one
// TTL window.
const tokenBytes = 9

// ErrEntropyUnavailable means the system random source failed; tokens
// cannot be issued safely without it.
var ErrEntropyUnavailable = errors.New("entropy source unavailable")

// NewToken returns a fresh unguessable URL-safe token. It doubles as
// the store key and the deep-link start parameter.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
