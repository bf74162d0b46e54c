package session

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
)

// ValidateSessionBeforeRequest is the gate consumers call before any
// authenticated request. It returns false only when there is no usable
// session. Calls inside ValidationInterval of the last check return at once;
// a known-expired access token skips the throttle. Errors other than a 401
// fail open.
func (c *Controller) ValidateSessionBeforeRequest(ctx context.Context) bool {
	if _, ok := c.authenticated(); !ok {
		return false
	}

	ctx = c.flowContext(context.WithoutCancel(ctx), "validate_session")
	v, _, _ := c.flights.Do(flightValidation, func() (any, error) {
		return c.validate(ctx), nil
	})
	return v.(bool)
}

func (c *Controller) validate(ctx context.Context) bool {
	now := c.now()

	c.mu.Lock()
	auth, ok := c.state.(Authenticated)
	if !ok {
		c.mu.Unlock()
		return false
	}
	expired := auth.Tokens.Expired(now)
	if !expired && !c.lastValidated.IsZero() && now.Sub(c.lastValidated) < c.cfg.ValidationInterval {
		c.mu.Unlock()
		return true
	}
	c.lastValidated = now
	c.mu.Unlock()

	if expired {
		c.logger.Debug("access token expired, recovering before request")
		return c.recoverForGate(ctx)
	}

	u, err := c.api.GetUserDetails(ctx, auth.Tokens.AccessToken)
	if err != nil {
		if authsdk.KindOf(err) == authsdk.KindUnauthorized {
			return c.recoverForGate(ctx)
		}
		// Inconclusive: the next gate call checks again.
		c.logger.Debug("session validation inconclusive, failing open", "kind", authsdk.KindOf(err))
		c.forgetValidation(now)
		return true
	}

	c.updateProfile(ctx, auth, profileFromResponse(u))
	return true
}

// recoverForGate runs recovery and reports whether a session is usable after.
func (c *Controller) recoverForGate(ctx context.Context) bool {
	if err := c.HandleUnauthorized(ctx); err != nil {
		c.logger.Debug("recovery before request failed", "kind", authsdk.KindOf(err))
	}
	_, ok := c.authenticated()
	return ok
}

// RefreshUserData re-fetches the profile for the current session. A 401 runs
// recovery first and then returns the recovered profile.
func (c *Controller) RefreshUserData(ctx context.Context) (domain.UserProfile, error) {
	auth, ok := c.authenticated()
	if !ok {
		return domain.UserProfile{}, ErrNotAuthenticated
	}

	ctx = c.flowContext(ctx, "refresh_user_data")

	u, err := c.api.GetUserDetails(ctx, auth.Tokens.AccessToken)
	if err != nil {
		if authsdk.KindOf(err) != authsdk.KindUnauthorized {
			return domain.UserProfile{}, fmt.Errorf("refresh user data: %w", err)
		}
		if err := c.HandleUnauthorized(ctx); err != nil {
			return domain.UserProfile{}, err
		}
		recovered, ok := c.authenticated()
		if !ok {
			return domain.UserProfile{}, ErrNotAuthenticated
		}
		return recovered.User, nil
	}

	user := profileFromResponse(u)
	c.updateProfile(ctx, auth, user)
	return user, nil
}

// updateProfile stores a fresh profile for the session it was fetched with.
// A session that changed meanwhile is left alone.
func (c *Controller) updateProfile(ctx context.Context, auth Authenticated, user domain.UserProfile) {
	if user == auth.User {
		return
	}

	c.mu.Lock()
	epoch := c.epoch
	cur, ok := c.state.(Authenticated)
	c.mu.Unlock()
	if !ok || cur.Tokens.AccessToken != auth.Tokens.AccessToken {
		return
	}

	persist := func() error {
		return c.store.Profiles().SaveProfile(ctx, user)
	}
	if err := c.apply(&epoch, persist, authenticatedState(cur.Tokens, user)); err != nil {
		c.logger.Debug("profile update skipped", "error", err)
	}
}

// forgetValidation undoes the mark set at time at, unless a newer check has
// replaced it meanwhile.
func (c *Controller) forgetValidation(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastValidated.Equal(at) {
		c.lastValidated = time.Time{}
	}
}
