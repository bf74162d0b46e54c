package domain

import "time"

// TokenPair is what the login and refresh endpoints return: the short-lived
// access token and the long-lived refresh token. A pair is only ever stored
// or held in memory whole.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"` // typically "bearer"

	// ExpiresIn is the lifetime in seconds reported by the backend, if any
	ExpiresIn int `json:"expires_in,omitempty"`

	// ExpiresAt is the computed access token expiry. Zero when unknown.
	ExpiresAt time.Time `json:"expires_at,omitzero"`

	PasswordChangeRequired bool `json:"password_change_required,omitempty"`
}

// Complete reports whether both halves of the pair are present.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Expired reports whether the access token is known to be expired at now.
// A pair with unknown expiry is never considered expired.
func (p TokenPair) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}
