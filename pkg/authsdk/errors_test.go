package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseErrorResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		op     Operation
		status int
		header http.Header
		body   string
		kind   Kind
		code   string
	}{
		{
			name:   "mfa email via header",
			op:     OpLogin,
			status: http.StatusBadRequest,
			header: http.Header{HeaderMFARequired: []string{"email"}},
			body:   `{"detail":"Additional verification needed"}`,
			kind:   KindMFARequiredEmail,
		},
		{
			name:   "mfa totp via header wins over body",
			op:     OpLogin,
			status: http.StatusBadRequest,
			header: http.Header{HeaderMFARequired: []string{"TOTP"}},
			body:   `{"detail":"Email verification code required"}`,
			kind:   KindMFARequiredTOTP,
		},
		{
			name:   "mfa via mfa_type",
			op:     OpLogin,
			status: http.StatusBadRequest,
			body:   `{"detail":{"message":"MFA required","mfa_type":"email"}}`,
			kind:   KindMFARequiredEmail,
		},
		{
			name:   "mfa via code",
			op:     OpLogin,
			status: http.StatusBadRequest,
			body:   `{"code":"totp_required","message":"second factor required"}`,
			kind:   KindMFARequiredTOTP,
			code:   "totp_required",
		},
		{
			name:   "mfa email via text",
			op:     OpLogin,
			status: http.StatusBadRequest,
			body:   `{"detail":"Email verification code required"}`,
			kind:   KindMFARequiredEmail,
		},
		{
			name:   "mfa totp via text",
			op:     OpLogin,
			status: http.StatusBadRequest,
			body:   `{"detail":"TOTP code required"}`,
			kind:   KindMFARequiredTOTP,
		},
		{
			name:   "mfa ignored outside login",
			op:     OpSendLoginCode,
			status: http.StatusBadRequest,
			body:   `{"detail":"TOTP code required"}`,
			kind:   KindInvalidCredentials,
		},
		{
			name:   "wrong otp",
			op:     OpVerifyLoginCode,
			status: http.StatusBadRequest,
			body:   `{"detail":"Invalid verification code"}`,
			kind:   KindInvalidCredentials,
		},
		{
			name:   "401 on login",
			op:     OpLogin,
			status: http.StatusUnauthorized,
			body:   `{"detail":"Incorrect email or password"}`,
			kind:   KindInvalidCredentials,
		},
		{
			name:   "401 on me",
			op:     OpGetUserDetails,
			status: http.StatusUnauthorized,
			body:   `{"detail":"Could not validate credentials"}`,
			kind:   KindUnauthorized,
		},
		{
			name:   "401 on change password",
			op:     OpChangePassword,
			status: http.StatusUnauthorized,
			kind:   KindUnauthorized,
		},
		{
			name:   "401 on refresh",
			op:     OpRefresh,
			status: http.StatusUnauthorized,
			kind:   KindUnauthorized,
		},
		{
			name:   "422 on refresh",
			op:     OpRefresh,
			status: http.StatusUnprocessableEntity,
			kind:   KindUnauthorized,
		},
		{
			name:   "403 device refresh",
			op:     OpRefreshWithDevice,
			status: http.StatusForbidden,
			body:   `{"detail":"Device not recognized"}`,
			kind:   KindDeviceNotRecognized,
		},
		{
			name:   "403 plain refresh",
			op:     OpRefresh,
			status: http.StatusForbidden,
			kind:   KindUnauthorized,
		},
		{
			name:   "email not verified",
			op:     OpLogin,
			status: http.StatusForbidden,
			body:   `{"error":"email_not_verified","error_description":"Please verify your email"}`,
			kind:   KindEmailNotVerified,
			code:   "email_not_verified",
		},
		{
			name:   "locked",
			op:     OpLogin,
			status: http.StatusLocked,
			kind:   KindAccountLocked,
		},
		{
			name:   "gateway timeout",
			op:     OpGetUserDetails,
			status: http.StatusGatewayTimeout,
			kind:   KindTimeout,
		},
		{
			name:   "server error",
			op:     OpGetUserDetails,
			status: http.StatusInternalServerError,
			body:   `{"detail":"boom"}`,
			kind:   KindServerUnavailable,
		},
		{
			name:   "html content type",
			op:     OpLogin,
			status: http.StatusBadRequest,
			header: http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
			body:   `<html><body>blocked</body></html>`,
			kind:   KindServerUnavailable,
		},
		{
			name:   "html sniffed from body",
			op:     OpLogin,
			status: http.StatusBadGateway,
			body:   "<!DOCTYPE html><html><head><title>502</title></head></html>",
			kind:   KindServerUnavailable,
		},
		{
			name:   "unexpected status",
			op:     OpForgotPassword,
			status: http.StatusTeapot,
			kind:   KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			header := tt.header
			if header == nil {
				header = http.Header{}
			}

			err := parseErrorResponse(tt.op, &response{
				StatusCode: tt.status,
				Header:     header,
				Body:       []byte(tt.body),
			})

			var e *Error
			require.True(t, errors.As(err, &e))
			require.Equal(t, tt.kind, e.Kind, e.Error())
			require.Equal(t, tt.op, e.Op)
			require.Equal(t, tt.status, e.StatusCode)
			require.NotEmpty(t, e.Message)
			if tt.code != "" {
				require.Equal(t, tt.code, e.Code)
			}
		})
	}
}

func TestParseErrorResponse_RetryAfter(t *testing.T) {
	t.Parallel()

	err := parseErrorResponse(OpLogin, &response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"42"}},
	})

	var e *Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, KindRateLimited, e.Kind)
	require.Equal(t, 42*time.Second, e.RetryAfter)
}

func TestClassifyTransportError(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindTimeout, KindOf(classifyTransportError(OpLogin, context.DeadlineExceeded)))
	require.Equal(t, KindTimeout, KindOf(classifyTransportError(OpLogin, fmt.Errorf("wrapped: %w", context.Canceled))))
	require.Equal(t, KindNetworkUnreachable, KindOf(classifyTransportError(OpLogin, errors.New("connection refused"))))
}

func TestKindGroups(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{KindTimeout, KindNetworkUnreachable, KindServerUnavailable, KindRateLimited} {
		require.True(t, k.Transient(), k.String())
		require.False(t, k.Terminal(), k.String())
	}
	for _, k := range []Kind{KindUnauthorized, KindSecurityMismatch, KindDeviceNotRecognized} {
		require.True(t, k.Terminal(), k.String())
		require.False(t, k.Transient(), k.String())
	}
	for _, k := range []Kind{KindInvalidCredentials, KindMFARequiredEmail, KindAccountLocked, KindUnknown} {
		require.False(t, k.Terminal(), k.String())
		require.False(t, k.Transient(), k.String())
	}

	require.True(t, KindMFARequiredEmail.MFARequired())
	require.True(t, KindMFARequiredTOTP.MFARequired())
	require.False(t, KindInvalidCredentials.MFARequired())
}

func TestErrorMatching(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("login: %w", &Error{Kind: KindAccountLocked, Op: OpLogin, StatusCode: 423})
	require.ErrorIs(t, err, ErrAccountLocked)
	require.NotErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, KindAccountLocked, KindOf(err))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	require.Equal(t, KindUnknown, KindOf(nil))

	require.Contains(t, err.Error(), "login: account_locked (HTTP 423)")
	require.NotEmpty(t, (&Error{Kind: KindSecurityMismatch}).UserMessage())
}
