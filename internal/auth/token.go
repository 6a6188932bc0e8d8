// Package auth - token.go inspects the bearer token issued by the backend API.
//
// The dashboard never holds the backend's signing key, so the token is parsed without
// signature verification. The backend verifies it on every call; the dashboard only
// reads the expiry so a session wrapping an expired token is treated as absent.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the backend token claims the dashboard cares about.
type TokenClaims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ErrOpaqueToken is returned when the backend token is not a JWT.
var ErrOpaqueToken = errors.New("backend token is not a JWT")

// ParseTokenClaims decodes the claims of a backend token without verifying its signature.
func ParseTokenClaims(token string) (*TokenClaims, error) {
	if token == "" {
		return nil, ErrOpaqueToken
	}
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpaqueToken, err)
	}
	return claims, nil
}

// TokenExpiry returns the exp claim of the token. The boolean is false for opaque
// tokens and tokens without an expiry.
func TokenExpiry(token string) (time.Time, bool) {
	claims, err := ParseTokenClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenExpired reports whether the token carries an expiry at or before now.
// Opaque tokens and tokens without exp never expire from the dashboard's point of view.
func TokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return !now.Before(exp)
}
