package authsdk

import (
	"context"
	"net/http"
)

// GetUserDetails fetches the profile behind an access token. An invalid or
// expired token yields KindUnauthorized; refreshing is the caller's job.
func (c *SDKClient) GetUserDetails(ctx context.Context, accessToken string) (*UserResponse, error) {
	var user UserResponse
	if err := c.call(ctx, OpGetUserDetails, http.MethodGet, "/api/auth/me", nil, accessToken, &user); err != nil {
		return nil, err
	}

	if user.Email == "" {
		return nil, &Error{
			Kind:    KindUnknown,
			Op:      OpGetUserDetails,
			Message: "user response is missing the email",
		}
	}

	return &user, nil
}

// ============================================================================
// Password Management
// ============================================================================

// ChangePassword changes the password of the authenticated user.
func (c *SDKClient) ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error {
	req := ChangePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	}
	return c.call(ctx, OpChangePassword, http.MethodPost, "/api/auth/change-password", req, accessToken, nil)
}

// ChangePasswordDirect changes the password using the credentials themselves.
// Used when login reported password_change_required.
func (c *SDKClient) ChangePasswordDirect(ctx context.Context, email, currentPassword, newPassword string) error {
	req := ChangePasswordRequest{
		Email:           normalizeEmail(email),
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	}
	return c.call(ctx, OpChangePasswordDirect, http.MethodPost, "/api/auth/change-password", req, "", nil)
}

// ForgotPassword requests a password reset email.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	req := ForgotPasswordRequest{Email: normalizeEmail(email)}

	var msg MessageResponse
	if err := c.call(ctx, OpForgotPassword, http.MethodPost, "/api/auth/forgot-password", req, "", &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ResetPassword sets a new password using the token from the reset email.
func (c *SDKClient) ResetPassword(ctx context.Context, token, newPassword string) error {
	req := ResetPasswordRequest{Token: token, NewPassword: newPassword}
	return c.call(ctx, OpResetPassword, http.MethodPost, "/api/auth/reset-password", req, "", nil)
}

// ============================================================================
// Biometric Device Registration
// ============================================================================

// RegisterBiometricDevice registers this device for biometric refresh.
func (c *SDKClient) RegisterBiometricDevice(ctx context.Context, accessToken string, req BiometricRegisterRequest) error {
	return c.call(ctx, OpRegisterDevice, http.MethodPost, "/api/biometric/register", req, accessToken, nil)
}

// RemoveBiometricDevice unregisters this device.
func (c *SDKClient) RemoveBiometricDevice(ctx context.Context, accessToken, deviceFingerprint string) error {
	req := BiometricRemoveRequest{DeviceFingerprint: deviceFingerprint}
	return c.call(ctx, OpRemoveDevice, http.MethodDelete, "/api/biometric/remove-device", req, accessToken, nil)
}
