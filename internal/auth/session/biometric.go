package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
	"github.com/aussiebroadwan/supportchat/pkg/cryptox"
)

// EnrolPromptReason is shown when the user opts in to biometric login.
const EnrolPromptReason = "Enable biometric sign-in"

// Error codes carried by the security errors below.
const (
	CodeIdentityMismatch = "biometric_identity_mismatch"
	CodeBiometricRevoked = "biometric_revoked"
)

// CheckBiometricAvailability reports whether biometric hardware is usable.
func (c *Controller) CheckBiometricAvailability(ctx context.Context) domain.Availability {
	return c.vault.IsAvailable(ctx)
}

// IsBiometricEnabled reports whether a usable biometric binding exists.
func (c *Controller) IsBiometricEnabled(ctx context.Context) bool {
	return c.vault.IsEnabled(ctx)
}

// EnableBiometric binds the current session's refresh token to this device
// after a confirming prompt. false with a nil error means the user cancelled.
func (c *Controller) EnableBiometric(ctx context.Context) (bool, error) {
	done, err := c.beginFlow()
	if err != nil {
		return false, err
	}
	defer done()

	ctx = c.flowContext(ctx, "enable_biometric")

	auth, ok := c.authenticated()
	if !ok {
		return false, ErrNotAuthenticated
	}
	if !c.vault.IsAvailable(ctx).Available {
		return false, ErrBiometricUnavailable
	}
	if !c.vault.Confirm(ctx, EnrolPromptReason) {
		return false, nil
	}

	fp := c.vault.DeviceFingerprint(ctx)
	if err := c.vault.Enable(ctx, auth.Tokens.RefreshToken, auth.Tokens.AccessToken, fp, auth.User.Email); err != nil {
		return false, fmt.Errorf("enable biometric: %w", err)
	}
	return true, nil
}

// DisableBiometric is the explicit revocation: the device is unregistered
// (best-effort) and the binding deleted. The session itself is untouched.
func (c *Controller) DisableBiometric(ctx context.Context) error {
	done, err := c.beginFlow()
	if err != nil {
		return err
	}
	defer done()

	ctx = c.flowContext(ctx, "disable_biometric")

	var access string
	if auth, ok := c.authenticated(); ok {
		access = auth.Tokens.AccessToken
	}
	return c.vault.Disable(ctx, access)
}

// LoginWithBiometric prompts, exchanges the stored refresh token and runs the
// identity gates. false with a nil error means the prompt was cancelled and
// nothing changed.
func (c *Controller) LoginWithBiometric(ctx context.Context) (bool, error) {
	done, err := c.beginFlow()
	if err != nil {
		return false, err
	}
	defer done()

	ctx = c.flowContext(ctx, "biometric_login")

	rec, err := c.vault.Record(ctx)
	if err != nil {
		return false, ErrBiometricNotEnabled
	}

	token, ok := c.vault.AuthenticateAndGetToken(ctx)
	if !ok {
		return false, nil
	}
	rec.RefreshToken = token

	c.setState(Authenticating{})

	tokens, user, err := c.biometricSync(ctx, rec)
	if err != nil {
		if !isSecurityError(err) && authsdk.KindOf(err).Terminal() {
			// The stored refresh token is dead; the binding is useless.
			c.disableVault(ctx)
		}
		return false, c.fail(fmt.Errorf("biometric login: %w", err))
	}

	if err := c.apply(nil, c.persistSession(ctx, tokens, user), authenticatedState(tokens, user)); err != nil {
		return false, c.fail(fmt.Errorf("persist session: %w", err))
	}
	c.rebind(ctx, tokens)
	return true, nil
}

// ============================================================================
// Biometric Sync Steps
// ============================================================================

// biometricSync exchanges the bound refresh token and verifies the identity
// behind it. Gate failures disable the vault before returning. Nothing is
// persisted; the caller decides how to commit the result.
func (c *Controller) biometricSync(ctx context.Context, rec domain.BiometricRecord) (domain.TokenPair, domain.UserProfile, error) {
	tokens, err := c.exchangeToken(ctx, rec)
	if err != nil {
		return domain.TokenPair{}, domain.UserProfile{}, err
	}

	user, err := c.verifyIdentity(ctx, tokens, rec)
	if err != nil {
		return domain.TokenPair{}, domain.UserProfile{}, err
	}

	if err := c.verifyBackendFlag(ctx, user); err != nil {
		return domain.TokenPair{}, domain.UserProfile{}, err
	}

	return tokens, user, nil
}

// exchangeToken prefers the device validated refresh and falls back to the
// plain refresh per the client's retry policy.
func (c *Controller) exchangeToken(ctx context.Context, rec domain.BiometricRecord) (domain.TokenPair, error) {
	resp, err := c.api.ExchangeRefreshToken(ctx, rec.RefreshToken, rec.DeviceFingerprint)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("exchange token: %w", err)
	}
	return tokensFromResponse(resp, c.now()), nil
}

// verifyIdentity is security gate A: the profile behind the exchanged token
// must belong to the bound email.
func (c *Controller) verifyIdentity(ctx context.Context, tokens domain.TokenPair, rec domain.BiometricRecord) (domain.UserProfile, error) {
	u, err := c.api.GetUserDetails(ctx, tokens.AccessToken)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("fetch profile: %w", err)
	}
	user := profileFromResponse(u)

	if !domain.SameEmail(user.Email, rec.BoundEmail) {
		c.logger.Warn("biometric identity mismatch, disabling biometric login",
			"device", rec.DeviceFingerprint,
			"refresh_fp", cryptox.FingerprintToken(rec.RefreshToken),
		)
		// No remote removal: the token belongs to a different account.
		c.disableVault(ctx)

		serr := authsdk.NewError(authsdk.KindSecurityMismatch, "biometric credential does not belong to the enrolled account")
		serr.Code = CodeIdentityMismatch
		return domain.UserProfile{}, serr
	}

	return user, nil
}

// verifyBackendFlag is security gate B: biometric login must still be enabled
// for the account on the backend.
func (c *Controller) verifyBackendFlag(ctx context.Context, user domain.UserProfile) error {
	if user.BiometricMFAEnabled {
		return nil
	}

	c.logger.Warn("biometric login revoked on the backend, disabling", "user_id", user.ID)
	c.disableVault(ctx)

	serr := authsdk.NewError(authsdk.KindSecurityMismatch, "biometric sign-in was turned off for this account")
	serr.Code = CodeBiometricRevoked
	return serr
}

// rebind moves the binding onto the rotated refresh token.
func (c *Controller) rebind(ctx context.Context, tokens domain.TokenPair) {
	if err := c.vault.Rebind(ctx, tokens.RefreshToken); err != nil {
		c.logger.Error("failed to rebind biometric vault", "error", err)
	}
}

func (c *Controller) disableVault(ctx context.Context) {
	if err := c.vault.Disable(ctx, ""); err != nil {
		c.logger.Error("failed to disable biometric vault", "error", err)
	}
}

// isSecurityError reports gate failures, after which the vault is already gone.
func isSecurityError(err error) bool {
	var ae *authsdk.Error
	return errors.As(err, &ae) && ae.Kind == authsdk.KindSecurityMismatch
}
