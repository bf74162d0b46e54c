package session

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
	"github.com/aussiebroadwan/supportchat/pkg/cryptox"
)

// Login runs the direct password login. An MFA challenge is not an error: the
// outcome is OutcomeAwaitingOTP and the state is AwaitingOTP. Any other
// failure publishes the Error state and is returned.
func (c *Controller) Login(ctx context.Context, email, password string) (LoginOutcome, error) {
	done, err := c.beginFlow()
	if err != nil {
		return OutcomeFailed, err
	}
	defer done()

	ctx = c.flowContext(ctx, "login")
	creds := domain.Credentials{Email: domain.NormalizeEmail(email), Password: password}

	c.setState(Authenticating{})

	resp, err := c.api.Login(ctx, creds.Email, creds.Password, "")
	if err != nil {
		switch authsdk.KindOf(err) {
		case authsdk.KindMFARequiredEmail:
			// Delivery failures are not surfaced here; resend is the recovery path.
			c.resend.AllowN(c.now(), 1)
			if _, sendErr := c.api.SendLoginCode(ctx, creds.Email, creds.Password); sendErr != nil {
				c.logger.Info("login code delivery failed", "kind", authsdk.KindOf(sendErr))
			}
			c.awaitOTP(creds, domain.MFAMethodEmail)
			return OutcomeAwaitingOTP, nil

		case authsdk.KindMFARequiredTOTP:
			c.awaitOTP(creds, domain.MFAMethodTOTP)
			return OutcomeAwaitingOTP, nil
		}

		return OutcomeFailed, c.fail(fmt.Errorf("login: %w", err))
	}

	return c.completeAuth(ctx, resp)
}

func (c *Controller) awaitOTP(creds domain.Credentials, method domain.MFAMethod) {
	_ = c.apply(nil, func() error {
		c.pending = creds
		return nil
	}, AwaitingOTP{Email: creds.Email, Method: method})
}

// CompleteLogin submits the one-time code for the pending challenge. A wrong
// code keeps AwaitingOTP (with LastError set) so the caller can retry.
func (c *Controller) CompleteLogin(ctx context.Context, otp string) (LoginOutcome, error) {
	done, err := c.beginFlow()
	if err != nil {
		return OutcomeFailed, err
	}
	defer done()

	ctx = c.flowContext(ctx, "complete_login")

	c.mu.Lock()
	waiting, ok := c.state.(AwaitingOTP)
	creds := c.pending
	c.mu.Unlock()

	if !ok || creds.Empty() {
		return OutcomeFailed, c.fail(ErrNoPendingLogin)
	}

	resp, err := c.api.VerifyLoginCode(ctx, creds.Email, creds.Password, otp)
	if err != nil {
		err = fmt.Errorf("verify login code: %w", err)

		if authsdk.KindOf(err) == authsdk.KindAccountLocked {
			return OutcomeFailed, c.fail(err)
		}

		waiting.Attempts++
		waiting.LastError = errorState(err).Message
		_ = c.apply(nil, func() error {
			c.pending = creds
			return nil
		}, waiting)
		return OutcomeAwaitingOTP, err
	}

	return c.completeAuth(ctx, resp)
}

// ResendOTP re-sends the email code using the held credentials. Requests
// inside ResendInterval are refused locally with KindRateLimited.
func (c *Controller) ResendOTP(ctx context.Context) error {
	done, err := c.beginFlow()
	if err != nil {
		return err
	}
	defer done()

	ctx = c.flowContext(ctx, "resend_otp")

	c.mu.Lock()
	waiting, ok := c.state.(AwaitingOTP)
	creds := c.pending
	c.mu.Unlock()

	if !ok || creds.Empty() {
		return ErrNoPendingLogin
	}
	if waiting.Method != domain.MFAMethodEmail {
		return ErrResendUnsupported
	}

	now := c.now()
	r := c.resend.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &authsdk.Error{
			Kind:       authsdk.KindRateLimited,
			Op:         authsdk.OpSendLoginCode,
			Message:    "please wait before requesting another code",
			RetryAfter: delay,
		}
	}

	if _, err := c.api.SendLoginCode(ctx, creds.Email, creds.Password); err != nil {
		return fmt.Errorf("resend login code: %w", err)
	}
	return nil
}

// completeAuth is shared by every password based login: fetch the profile,
// persist, re-bind the vault and publish Authenticated.
func (c *Controller) completeAuth(ctx context.Context, resp *authsdk.TokenResponse) (LoginOutcome, error) {
	tokens := tokensFromResponse(resp, c.now())

	u, err := c.api.GetUserDetails(ctx, tokens.AccessToken)
	if err != nil {
		return OutcomeFailed, c.fail(fmt.Errorf("fetch profile: %w", err))
	}
	user := profileFromResponse(u)

	next := authenticatedState(tokens, user)
	if err := c.apply(nil, c.persistSession(ctx, tokens, user), next); err != nil {
		return OutcomeFailed, c.fail(fmt.Errorf("persist session: %w", err))
	}

	c.rebindAfterLogin(ctx, tokens, user)

	c.logger.Info("login succeeded",
		"user_id", user.ID,
		"refresh_fp", cryptox.FingerprintToken(tokens.RefreshToken),
	)

	if next.PasswordChangeRequired {
		return OutcomePasswordChangeRequired, nil
	}
	return OutcomeAuthenticated, nil
}

// rebindAfterLogin moves the biometric binding onto the new refresh token, but
// only for the same account. A login as someone else disables the vault.
func (c *Controller) rebindAfterLogin(ctx context.Context, tokens domain.TokenPair, user domain.UserProfile) {
	rec, err := c.vault.Record(ctx)
	if err != nil {
		return
	}

	if !domain.SameEmail(rec.BoundEmail, user.Email) {
		c.logger.Warn("biometric binding belongs to another account, disabling")
		if err := c.vault.Disable(ctx, ""); err != nil {
			c.logger.Error("failed to disable biometric vault", "error", err)
		}
		return
	}

	if err := c.vault.Rebind(ctx, tokens.RefreshToken); err != nil {
		c.logger.Error("failed to rebind biometric vault", "error", err)
	}
}
