package authsdk

import (
	"context"
	"net/http"
	"strings"
)

// Login submits credentials (and optionally a TOTP code). MFA challenges come
// back as KindMFARequiredEmail / KindMFARequiredTOTP errors; callers branch on
// the Kind, not the status code.
func (c *SDKClient) Login(ctx context.Context, email, password, totpCode string) (*TokenResponse, error) {
	req := LoginRequest{
		Email:    normalizeEmail(email),
		Password: password,
		TOTPCode: strings.TrimSpace(totpCode),
	}

	var tokenResp TokenResponse
	if err := c.call(ctx, OpLogin, http.MethodPost, "/api/auth/login", req, "", &tokenResp); err != nil {
		return nil, err
	}

	return validateTokenResponse(OpLogin, &tokenResp)
}

// SendLoginCode asks the backend to email a one-time login code. Only
// meaningful after Login returned KindMFARequiredEmail.
func (c *SDKClient) SendLoginCode(ctx context.Context, email, password string) (*MessageResponse, error) {
	req := SendLoginCodeRequest{
		Email:    normalizeEmail(email),
		Password: password,
	}

	var msg MessageResponse
	if err := c.call(ctx, OpSendLoginCode, http.MethodPost, "/api/email-mfa/send-login-code", req, "", &msg); err != nil {
		return nil, err
	}

	return &msg, nil
}

// VerifyLoginCode re-submits the credentials together with the OTP. The
// backend treats this as another login attempt, not a separate session.
func (c *SDKClient) VerifyLoginCode(ctx context.Context, email, password, otp string) (*TokenResponse, error) {
	req := LoginRequest{
		Email:    normalizeEmail(email),
		Password: password,
		TOTPCode: strings.TrimSpace(otp),
	}

	var tokenResp TokenResponse
	if err := c.call(ctx, OpVerifyLoginCode, http.MethodPost, "/api/auth/login", req, "", &tokenResp); err != nil {
		return nil, err
	}

	return validateTokenResponse(OpVerifyLoginCode, &tokenResp)
}

// validateTokenResponse enforces that a pair is always complete.
func validateTokenResponse(op Operation, resp *TokenResponse) (*TokenResponse, error) {
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, &Error{
			Kind:    KindUnknown,
			Op:      op,
			Message: "token response is missing the access or refresh token",
		}
	}
	if resp.TokenType == "" {
		resp.TokenType = "bearer"
	}
	return resp, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
