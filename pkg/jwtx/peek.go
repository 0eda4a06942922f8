// Package jwtx inspects JWTs issued by a remote provider. Tokens are captured
// from redirects, not minted here, so claims are read without signature
// verification; nothing in this process trusts them for authorization.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotAJWT reports that a token does not have JWT structure.
var ErrNotAJWT = errors.New("jwtx: token is not a JWT")

// PeekedClaims is the subset of claims worth recording about a captured
// access token.
type PeekedClaims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

type peekClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Peek decodes a JWT's claims without verifying its signature.
func Peek(token string) (PeekedClaims, error) {
	var claims peekClaims

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return PeekedClaims{}, ErrNotAJWT
	}

	out := PeekedClaims{
		Subject: claims.Subject,
		Email:   claims.Email,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
