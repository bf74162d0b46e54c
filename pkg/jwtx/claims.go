// Package jwtx reads the claims of access tokens issued by the auth backend.
//
// The client never holds the backend's verification keys, so claims are parsed
// without verifying the signature. They are hints for scheduling (when does
// the access token expire) and must never be used for authorization decisions.
package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed = errors.New("jwtx: malformed token")
	ErrExpired   = errors.New("jwtx: token expired")
)

// Claims are the access-token claims the client cares about.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user, when the backend includes it
	Email string `json:"email,omitempty"`

	// Type distinguishes "access" from "refresh" tokens on backends that mint
	// both as JWTs
	Type string `json:"type,omitempty"`
}

var parser = jwt.NewParser()

// ParseUnverified decodes the claims of token without checking its signature.
func ParseUnverified(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &claims, nil
}

// Expiry returns the exp claim, or the zero time if absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ValidateExpiryWithLeeway adds a small grace period for clock skew. Tokens
// without an exp claim never expire from the client's point of view.
func (c *Claims) ValidateExpiryWithLeeway(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	return nil
}

// ExpiresAt is a convenience for callers that only need the expiry of an
// opaque token string. Non-JWT tokens yield the zero time.
func ExpiresAt(token string) time.Time {
	c, err := ParseUnverified(token)
	if err != nil {
		return time.Time{}
	}
	return c.Expiry()
}
