package session

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/internal/auth/store"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
)

// Logout ends the session. The intentional logout flag suppresses recovery on
// the next start. The biometric binding is deliberately kept: logout is not
// biometric revocation, DisableBiometric is.
func (c *Controller) Logout(ctx context.Context) error {
	done, err := c.beginFlow()
	if err != nil {
		return err
	}
	defer done()

	ctx = c.flowContext(ctx, "logout")

	if err := c.store.Preferences().SetIntentionalLogout(ctx, true); err != nil {
		c.logger.Error("failed to record intentional logout", "error", err)
	}

	var access string
	if auth, ok := c.authenticated(); ok {
		access = auth.Tokens.AccessToken
	} else if tokens, err := c.store.Tokens().GetTokenPair(ctx); err == nil {
		access = tokens.AccessToken
	}

	if access != "" {
		if err := c.api.Logout(ctx, access); err != nil {
			c.logger.Info("server logout failed, clearing locally", "kind", authsdk.KindOf(err))
		}
	}

	// The flag is written again with the clear: a recovery that committed
	// while the server call was in flight resets it.
	wipe := func() error {
		return c.store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Tokens().DeleteTokenPair(ctx); err != nil {
				return err
			}
			if err := tx.Profiles().DeleteProfile(ctx); err != nil {
				return err
			}
			return tx.Preferences().SetIntentionalLogout(ctx, true)
		})
	}

	if err := c.apply(nil, wipe, Unauthenticated{}); err != nil {
		c.setState(Unauthenticated{})
		return fmt.Errorf("logout: clear session: %w", err)
	}
	return nil
}

// ============================================================================
// Password Management
// ============================================================================

// ChangePassword changes the password of the signed in user and clears the
// forced change flag on success.
func (c *Controller) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	done, err := c.beginFlow()
	if err != nil {
		return err
	}
	defer done()

	ctx = c.flowContext(ctx, "change_password")

	auth, ok := c.authenticated()
	if !ok {
		return ErrNotAuthenticated
	}

	if err := c.api.ChangePassword(ctx, auth.Tokens.AccessToken, currentPassword, newPassword); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	if !auth.PasswordChangeRequired {
		return nil
	}

	tokens, user := auth.Tokens, auth.User
	tokens.PasswordChangeRequired = false
	user.PasswordChangeRequired = false

	return c.apply(nil, c.persistSession(ctx, tokens, user), authenticatedState(tokens, user))
}

// ChangePasswordDirect changes a password using the credentials themselves,
// for accounts that must change it before they can sign in.
func (c *Controller) ChangePasswordDirect(ctx context.Context, email, currentPassword, newPassword string) error {
	ctx = c.flowContext(ctx, "change_password_direct")
	if err := c.api.ChangePasswordDirect(ctx, domain.NormalizeEmail(email), currentPassword, newPassword); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// ForgotPassword asks the backend to send a reset email.
func (c *Controller) ForgotPassword(ctx context.Context, email string) (string, error) {
	ctx = c.flowContext(ctx, "forgot_password")
	msg, err := c.api.ForgotPassword(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return "", fmt.Errorf("forgot password: %w", err)
	}
	return msg.Message, nil
}

// ResetPassword completes a reset with the token from the email.
func (c *Controller) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx = c.flowContext(ctx, "reset_password")
	if err := c.api.ResetPassword(ctx, token, newPassword); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}
