// Package token reads claims out of self-describing access tokens on the
// client side.
//
// The identity service is the only party that verifies signatures; this
// package deliberately parses without verification, because the client only
// needs the expiry instant of a token it already holds. Nothing here should
// ever gate an authorization decision.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when a token parses but carries no usable exp
// claim. Callers treat such tokens as already expired, never as eternal.
var ErrNoExpiry = errors.New("token has no expiry claim")

var parser = jwt.NewParser()

// Expiry decodes raw without signature verification and returns the instant
// the token expires. The exp claim is seconds since epoch per RFC 7519.
func Expiry(raw string) (time.Time, error) {
	_, claims, err := decode(raw)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, ErrNoExpiry
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}

	return exp.Time, nil
}

// Subject returns the sub claim, or "" when absent or unreadable.
func Subject(raw string) string {
	_, claims, err := decode(raw)
	if err != nil {
		return ""
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// Identity returns a stable identifier for one issued token instance, used
// to scope fire-once semantics across renewals. For a well-formed JWS this
// is the signature segment; anything else falls back to the whole string.
func Identity(raw string) string {
	parts := strings.Split(raw, ".")
	if len(parts) == 3 && parts[2] != "" {
		return parts[2]
	}
	return raw
}

func decode(raw string) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	tok, _, err := parser.ParseUnverified(raw, claims)
	if err != nil {
		return nil, nil, err
	}
	return tok, claims, nil
}
