package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/internal/auth/store"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
)

// SessionExpiredNotice is the one-time notice carried by SessionExpired.
const SessionExpiredNotice = "Your session has expired. Please sign in again."

const (
	flightRecovery   = "session-recovery"
	flightValidation = "session-validation"
)

// Start runs app-start recovery. Only the first call does anything; later
// calls return the state reached by the first.
func (c *Controller) Start(ctx context.Context) State {
	c.startOnce.Do(func() {
		done, err := c.beginFlow()
		if err != nil {
			return
		}
		defer done()

		c.appStart(c.flowContext(ctx, "app_start"))
	})
	return c.State()
}

func (c *Controller) appStart(ctx context.Context) {
	intentional, err := c.store.Preferences().IntentionalLogout(ctx)
	if err != nil {
		c.logger.Warn("failed to read logout flag", "error", err)
	}
	if intentional {
		c.logger.Info("previous session ended by logout, skipping recovery")
		return
	}

	if rec, ok := c.silentBinding(ctx); ok {
		c.setState(Authenticating{})

		tokens, user, err := c.biometricSync(ctx, rec)
		switch {
		case err == nil:
			if err := c.apply(nil, c.persistSession(ctx, tokens, user), authenticatedState(tokens, user)); err == nil {
				c.rebind(ctx, tokens)
				return
			}

		case isSecurityError(err):
			// The gate already disabled the vault. The alert is published
			// before falling back so it is not lost behind the next state.
			c.logger.Warn("silent biometric recovery failed a security check, falling back", "error", err)
			c.setState(errorState(err))

		default:
			kind := authsdk.KindOf(err)
			c.logger.Info("silent biometric recovery failed, falling back", "kind", kind)

			// Transient failures say nothing about the binding and must not
			// destroy it.
			if !kind.Transient() {
				c.disableVault(ctx)
			}
		}
	}

	c.recoverStored(ctx)
}

// recoverStored restores the persisted pair and profile with one refresh.
func (c *Controller) recoverStored(ctx context.Context) {
	tokens, terr := c.store.Tokens().GetTokenPair(ctx)
	user, perr := c.store.Profiles().GetProfile(ctx)
	if terr != nil || perr != nil {
		if !errors.Is(terr, store.ErrNotFound) || !errors.Is(perr, store.ErrNotFound) {
			// Partial or unreadable leftovers are not a session.
			_ = c.apply(nil, c.clearSession(ctx), Unauthenticated{})
			return
		}
		c.setState(Unauthenticated{})
		return
	}

	c.setState(Authenticating{})

	resp, err := c.api.RefreshToken(ctx, tokens.RefreshToken)
	if err != nil {
		kind := authsdk.KindOf(err)
		if kind.Transient() {
			// Offline start: keep the cached session, the validation gate
			// re-checks on the first authenticated request.
			c.logger.Info("stored session refresh failed transiently, using cached session", "kind", kind)
			c.setState(authenticatedState(tokens, user))
			c.resetValidation()
			return
		}

		c.logger.Info("stored session could not be refreshed, clearing", "kind", kind)
		if err := c.apply(nil, c.clearSession(ctx), Unauthenticated{}); err != nil {
			c.logger.Error("failed to clear session", "error", err)
			c.setState(Unauthenticated{})
		}
		return
	}

	tokens = tokensFromResponse(resp, c.now())
	if u, err := c.api.GetUserDetails(ctx, tokens.AccessToken); err == nil {
		user = profileFromResponse(u)
	} else {
		c.logger.Info("profile refresh failed, using cached profile", "kind", authsdk.KindOf(err))
	}

	if err := c.apply(nil, c.persistSession(ctx, tokens, user), authenticatedState(tokens, user)); err != nil {
		c.logger.Error("failed to persist recovered session", "error", err)
		c.setState(authenticatedState(tokens, user))
	}
}

// HandleUnauthorized is called when an authenticated request saw a 401.
// Concurrent calls collapse onto one recovery attempt. A nil error means the
// session is Authenticated again with new tokens and nothing was surfaced.
func (c *Controller) HandleUnauthorized(ctx context.Context) error {
	// Shared flights must not die with whichever caller started them.
	ctx = c.flowContext(context.WithoutCancel(ctx), "session_recovery")

	_, err, shared := c.flights.Do(flightRecovery, func() (any, error) {
		return nil, c.recoverSession(ctx)
	})
	if shared {
		c.logger.Debug("joined in-flight session recovery")
	}
	return err
}

func (c *Controller) recoverSession(ctx context.Context) error {
	epoch := c.currentEpoch()

	auth, ok := c.authenticated()
	if !ok {
		return ErrNotAuthenticated
	}

	tokens, user, err := c.silentRefresh(ctx, auth)
	if err == nil {
		err = c.apply(&epoch, c.persistSession(ctx, tokens, user), authenticatedState(tokens, user))
		if errors.Is(err, errStale) {
			c.logger.Info("session recovery superseded, discarding result")
			return err
		}
		if err != nil {
			return fmt.Errorf("persist recovered session: %w", err)
		}
		c.rebindIfBound(ctx, tokens, user)
		c.logger.Info("session recovered silently")
		return nil
	}

	kind := authsdk.KindOf(err)
	if kind.Transient() {
		// Nothing is known about the session; leave it alone and let the next
		// gate call try again.
		c.resetValidation()
		return fmt.Errorf("session recovery: %w", err)
	}

	// The biometric record is kept unless a gate failed: its token has its
	// own validity window.
	next := expiredState(err)
	if next.Security {
		c.logger.Warn("session recovery failed a security check, expiring session", "code", next.Code)
	} else {
		c.logger.Info("session recovery failed, expiring session", "kind", kind)
	}
	if aerr := c.apply(&epoch, c.clearSession(ctx), next); aerr != nil && !errors.Is(aerr, errStale) {
		c.logger.Error("failed to clear expired session", "error", aerr)
		c.setState(next)
	}
	return fmt.Errorf("session recovery: %w", err)
}

// expiredState is the SessionExpired for a failed recovery. Gate failures
// carry the security alert in place of the plain notice.
func expiredState(err error) SessionExpired {
	if !isSecurityError(err) {
		return SessionExpired{Notice: SessionExpiredNotice}
	}
	alert := errorState(err)
	return SessionExpired{Notice: alert.Message, Security: true, Code: alert.Code}
}

// silentRefresh re-establishes the session without prompting: through the
// biometric binding when enabled, otherwise with the session's own refresh
// token.
func (c *Controller) silentRefresh(ctx context.Context, auth Authenticated) (domain.TokenPair, domain.UserProfile, error) {
	if rec, ok := c.silentBinding(ctx); ok {
		return c.biometricSync(ctx, rec)
	}

	resp, err := c.api.RefreshToken(ctx, auth.Tokens.RefreshToken)
	if err != nil {
		return domain.TokenPair{}, domain.UserProfile{}, fmt.Errorf("refresh: %w", err)
	}
	tokens := tokensFromResponse(resp, c.now())

	u, err := c.api.GetUserDetails(ctx, tokens.AccessToken)
	if err != nil {
		return domain.TokenPair{}, domain.UserProfile{}, fmt.Errorf("fetch profile: %w", err)
	}
	return tokens, profileFromResponse(u), nil
}

// rebindIfBound rotates the biometric token when the binding belongs to user.
func (c *Controller) rebindIfBound(ctx context.Context, tokens domain.TokenPair, user domain.UserProfile) {
	rec, err := c.vault.Record(ctx)
	if err != nil || !domain.SameEmail(rec.BoundEmail, user.Email) {
		return
	}
	c.rebind(ctx, tokens)
}

// silentBinding returns the biometric binding for a recovery that must not
// prompt. The token comes from the vault's no-prompt entry point, the same
// way LoginWithBiometric takes it from the prompting one.
func (c *Controller) silentBinding(ctx context.Context) (domain.BiometricRecord, bool) {
	rec, err := c.vault.Record(ctx)
	if err != nil {
		return domain.BiometricRecord{}, false
	}
	token, ok := c.vault.StoredToken(ctx)
	if !ok {
		return domain.BiometricRecord{}, false
	}
	rec.RefreshToken = token
	return rec, true
}
