package authsdk

import (
	"context"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Operation names an SDK call. It keys the retry policy table and is recorded
// on every Error.
type Operation string

const (
	OpLogin                Operation = "login"
	OpSendLoginCode        Operation = "send_login_code"
	OpVerifyLoginCode      Operation = "verify_login_code"
	OpGetUserDetails       Operation = "get_user_details"
	OpRefresh              Operation = "refresh"
	OpRefreshWithDevice    Operation = "refresh_with_device"
	OpLogout               Operation = "logout"
	OpChangePassword       Operation = "change_password"
	OpChangePasswordDirect Operation = "change_password_direct"
	OpForgotPassword       Operation = "forgot_password"
	OpResetPassword        Operation = "reset_password"
	OpRegisterDevice       Operation = "register_device"
	OpRemoveDevice         Operation = "remove_device"
)

// bearsCredentials reports whether the request carries user credentials (as
// opposed to a token), which decides how 400/401/422 are classified.
func (op Operation) bearsCredentials() bool {
	switch op {
	case OpLogin, OpSendLoginCode, OpVerifyLoginCode, OpChangePassword,
		OpChangePasswordDirect, OpResetPassword:
		return true
	default:
		return false
	}
}

// usesBearer reports whether the request is authorised by an access token, in
// which case a 401 means the token is no longer valid.
func (op Operation) usesBearer() bool {
	switch op {
	case OpGetUserDetails, OpLogout, OpChangePassword, OpRegisterDevice, OpRemoveDevice:
		return true
	default:
		return false
	}
}

// refreshes reports whether the request exchanges a refresh token. Any
// rejection of a refresh means the refresh token is no longer usable.
func (op Operation) refreshes() bool {
	return op == OpRefresh || op == OpRefreshWithDevice
}

// acceptsMFA reports whether a 400 response may carry an MFA challenge.
func (op Operation) acceptsMFA() bool {
	return op == OpLogin || op == OpVerifyLoginCode
}

// RetryPolicy describes how an operation is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first (min 1)
	MaxAttempts int

	// InitialBackoff is the delay before the first retry
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential delay
	MaxBackoff time.Duration

	// RetryOn lists the kinds that trigger another attempt
	RetryOn []Kind

	// FallbackOn lists the kinds that make a composite operation fall back to
	// its plain variant (refresh with device -> plain refresh)
	FallbackOn []Kind
}

func (p RetryPolicy) retryable(k Kind) bool { return slices.Contains(p.RetryOn, k) }

// FallsBack reports whether kind k triggers the fallback path.
func (p RetryPolicy) FallsBack(k Kind) bool { return slices.Contains(p.FallbackOn, k) }

// DefaultRetryPolicies returns the retry table used by NewSDKClient.
//
// Credential submissions and logout are never retried. Refresh is only retried
// when the request could not have reached the server, since refresh tokens
// rotate on use and a replay would invalidate the rotated token.
func DefaultRetryPolicies() map[Operation]RetryPolicy {
	once := RetryPolicy{MaxAttempts: 1}
	unreachable := RetryPolicy{
		MaxAttempts:    2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		RetryOn:        []Kind{KindNetworkUnreachable},
	}
	idempotent := RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 300 * time.Millisecond,
		MaxBackoff:     3 * time.Second,
		RetryOn:        []Kind{KindTimeout, KindNetworkUnreachable, KindServerUnavailable},
	}

	refreshWithDevice := unreachable
	refreshWithDevice.FallbackOn = []Kind{KindDeviceNotRecognized}

	return map[Operation]RetryPolicy{
		OpLogin:                once,
		OpSendLoginCode:        unreachable,
		OpVerifyLoginCode:      once,
		OpGetUserDetails:       idempotent,
		OpRefresh:              unreachable,
		OpRefreshWithDevice:    refreshWithDevice,
		OpLogout:               once,
		OpChangePassword:       once,
		OpChangePasswordDirect: once,
		OpForgotPassword:       unreachable,
		OpResetPassword:        once,
		OpRegisterDevice:       idempotent,
		OpRemoveDevice:         idempotent,
	}
}

// Policy returns the policy for op, defaulting to a single attempt.
func (c *SDKClient) Policy(op Operation) RetryPolicy {
	if p, ok := c.RetryPolicies[op]; ok {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		return p
	}
	return RetryPolicy{MaxAttempts: 1}
}

// withRetry runs fn under op's policy. fn must return an *Error (or nil).
func (c *SDKClient) withRetry(ctx context.Context, op Operation, fn func(ctx context.Context) error) error {
	policy := c.Policy(op)
	if policy.MaxAttempts == 1 {
		return fn(ctx)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.InitialBackoff
	if policy.MaxBackoff > 0 {
		eb.MaxInterval = policy.MaxBackoff
	}
	eb.MaxElapsedTime = 0 // bounded by attempts, not wall time

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(policy.MaxAttempts-1)), ctx)

	attempt := 0
	var last error
	err := backoff.Retry(func() error {
		attempt++
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if !policy.retryable(KindOf(last)) {
			return backoff.Permanent(last)
		}
		c.logger().Debug("retrying auth request", "op", op, "attempt", attempt, "kind", KindOf(last))
		return last
	}, b)

	if err == nil {
		return nil
	}

	// backoff returns ctx.Err() when the caller gives up between attempts.
	if KindOf(err) == KindUnknown && last != nil {
		return last
	}
	return err
}
