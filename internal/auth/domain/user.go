package domain

import "strings"

// UserProfile is the server-authoritative identity and MFA capability flags
// returned by GET /api/auth/me. It is cached locally for offline display.
type UserProfile struct {
	ID                     string `json:"id"`
	Email                  string `json:"email"`
	FullName               string `json:"full_name,omitempty"`
	IsActive               bool   `json:"is_active"`
	IsEmailVerified        bool   `json:"is_email_verified"`
	EmailMFAEnabled        bool   `json:"email_mfa_enabled"`
	BiometricMFAEnabled    bool   `json:"biometric_mfa_enabled"`
	TOTPEnabled            bool   `json:"totp_enabled"`
	PasswordChangeRequired bool   `json:"password_change_required"`
}

// NormalizeEmail lowercases and trims an email for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameEmail compares two emails case-insensitively. Empty never matches.
func SameEmail(a, b string) bool {
	a, b = NormalizeEmail(a), NormalizeEmail(b)
	return a != "" && a == b
}
