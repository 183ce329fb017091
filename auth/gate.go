package auth

import (
	"net/http"
	"strings"

	"chat-relay/errors"
)

// Gate guards the connection handshake. The credential arrives out-of-band,
// either as a `token` query parameter or an Authorization bearer header.
type Gate struct {
	secret []byte
}

func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// Authenticate extracts and validates the handshake credential, returning
// the subject user id. A missing or invalid credential fails before any
// state is mutated.
func (g *Gate) Authenticate(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
		if token == header {
			token = ""
		}
	}
	if token == "" {
		return "", errors.ErrMissingCredential
	}
	return ValidateToken(g.secret, token)
}
