package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token fields the client displays (whoami). The token is
// parsed without signature verification: the client has no signing key,
// and the backend re-validates on every call anyway. Never use these
// claims for authorization decisions.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// DecodeClaims extracts display claims from a bearer credential.
func DecodeClaims(credential string) (*Claims, error) {
	var rc jwt.RegisteredClaims

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(credential, &rc); err != nil {
		return nil, fmt.Errorf("session: decoding token claims: %w", err)
	}

	c := &Claims{Subject: rc.Subject}

	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}

	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}

	return c, nil
}
