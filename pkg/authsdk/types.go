package authsdk

import (
	"bytes"
	"encoding/json"
)

// ============================================================================
// Request Types
// ============================================================================

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`

	// TOTPCode is set when answering a TOTP challenge or verifying an email code
	TOTPCode string `json:"totp_code,omitempty"`
}

// SendLoginCodeRequest is the body of POST /api/email-mfa/send-login-code.
type SendLoginCodeRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken      string `json:"refresh_token"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
}

// ChangePasswordRequest is the body of POST /api/auth/change-password.
// Email is only set for the direct (unauthenticated) variant used by the
// forced password change path.
type ChangePasswordRequest struct {
	Email           string `json:"email,omitempty"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ForgotPasswordRequest is the body of POST /api/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of POST /api/auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// BiometricRegisterRequest is the body of POST /api/biometric/register.
type BiometricRegisterRequest struct {
	DeviceFingerprint string `json:"device_fingerprint"`
	DeviceName        string `json:"device_name"`
	DeviceModel       string `json:"device_model"`
	PublicKey         string `json:"public_key"`
}

// BiometricRemoveRequest is the body of DELETE /api/biometric/remove-device.
type BiometricRemoveRequest struct {
	DeviceFingerprint string `json:"device_fingerprint"`
}

// ============================================================================
// Response Types
// ============================================================================

// TokenResponse is returned by login, OTP verification and refresh.
type TokenResponse struct {
	// AccessToken is the short-lived bearer token sent on every request
	AccessToken string `json:"access_token"`

	// RefreshToken is the long-lived token exchanged for a new pair
	RefreshToken string `json:"refresh_token"`

	// TokenType is typically "bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds (optional)
	ExpiresIn int `json:"expires_in,omitempty"`

	// PasswordChangeRequired forces the caller onto the password change path
	PasswordChangeRequired bool `json:"password_change_required,omitempty"`
}

// UserResponse is returned by GET /api/auth/me.
type UserResponse struct {
	ID                     UserID `json:"id"`
	Email                  string `json:"email"`
	FullName               string `json:"full_name,omitempty"`
	IsActive               bool   `json:"is_active"`
	IsEmailVerified        bool   `json:"is_email_verified"`
	EmailMFAEnabled        bool   `json:"email_mfa_enabled"`
	BiometricMFAEnabled    bool   `json:"biometric_mfa_enabled"`
	TOTPEnabled            bool   `json:"totp_enabled"`
	PasswordChangeRequired bool   `json:"password_change_required"`
}

// MessageResponse is the acknowledgement body used by several endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserID accepts both numeric and string ids.
type UserID string

func (id *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = UserID(n.String())
	return nil
}
