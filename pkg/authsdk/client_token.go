package authsdk

import (
	"context"
	"net/http"
)

// RefreshToken exchanges a refresh token for a new pair.
func (c *SDKClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	req := RefreshRequest{RefreshToken: refreshToken}

	var tokenResp TokenResponse
	if err := c.call(ctx, OpRefresh, http.MethodPost, "/api/auth/refresh", req, "", &tokenResp); err != nil {
		return nil, err
	}

	return validateTokenResponse(OpRefresh, &tokenResp)
}

// RefreshTokenWithDevice is the device-validated refresh. It additionally
// fails with KindDeviceNotRecognized when the fingerprint is not registered.
func (c *SDKClient) RefreshTokenWithDevice(
	ctx context.Context,
	refreshToken, deviceFingerprint string,
) (*TokenResponse, error) {
	req := RefreshRequest{
		RefreshToken:      refreshToken,
		DeviceFingerprint: deviceFingerprint,
	}

	var tokenResp TokenResponse
	if err := c.call(ctx, OpRefreshWithDevice, http.MethodPost, "/api/auth/refresh", req, "", &tokenResp); err != nil {
		return nil, err
	}

	return validateTokenResponse(OpRefreshWithDevice, &tokenResp)
}

// ExchangeRefreshToken prefers the device-validated refresh and falls back to
// the plain refresh for the kinds listed in the OpRefreshWithDevice policy.
// An empty fingerprint goes straight to the plain refresh.
func (c *SDKClient) ExchangeRefreshToken(
	ctx context.Context,
	refreshToken, deviceFingerprint string,
) (*TokenResponse, error) {
	if deviceFingerprint == "" {
		return c.RefreshToken(ctx, refreshToken)
	}

	tokenResp, err := c.RefreshTokenWithDevice(ctx, refreshToken, deviceFingerprint)
	if err == nil {
		return tokenResp, nil
	}

	if !c.Policy(OpRefreshWithDevice).FallsBack(KindOf(err)) {
		return nil, err
	}

	c.logger().Info("device refresh rejected, falling back to plain refresh", "kind", KindOf(err))
	return c.RefreshToken(ctx, refreshToken)
}

// Logout tells the backend to end the session. Best-effort: callers must not
// let a failure here block local cleanup.
func (c *SDKClient) Logout(ctx context.Context, accessToken string) error {
	return c.call(ctx, OpLogout, http.MethodPost, "/api/auth/logout", nil, accessToken, nil)
}
