/*
Package authsdk provides a client SDK for the support assistant authentication
backend.

# Overview

SDKClient is stateless: it holds the base URL, tenant and client identity, and
turns each backend endpoint into one method. It never stores tokens; callers
pass the access or refresh token they want to use. Session state (what is
signed in, how to recover it) lives in the session controller built on top.

	client := authsdk.NewSDKClient("https://support.example.com", "tenant-1", authsdk.ClientInfo{
		AppName:    "SupportChat",
		AppVersion: "1.4.0",
		AppType:    "support-assistant",
	})

	tokens, err := client.Login(ctx, "user@example.com", "password", "")

# Error Taxonomy

Every failure is an *Error carrying a Kind. Callers branch on the Kind, never
on status codes or transport errors:

	tokens, err := client.Login(ctx, email, password, "")
	switch authsdk.KindOf(err) {
	case authsdk.KindMFARequiredEmail:
		_, _ = client.SendLoginCode(ctx, email, password)
	case authsdk.KindMFARequiredTOTP:
		// ask for the authenticator code
	case authsdk.KindUnknown:
		// err == nil also lands here
	}

Predefined errors match by Kind, so errors.Is works regardless of operation:

	if errors.Is(err, authsdk.ErrUnauthorized) { ... }

Kinds are grouped:

  - Transient (Timeout, NetworkUnreachable, ServerUnavailable, RateLimited):
    nothing is known about the session, keep it.
  - Terminal (Unauthorized, SecurityMismatch, DeviceNotRecognized): the token
    pair in use is no longer valid.

The mapping is operation aware. A 401 on login is InvalidCredentials, a 401
on /me is Unauthorized. HTML bodies from proxies and load balancers are
ServerUnavailable whatever their status.

# MFA Detection

A 400 from login or OTP verification is an MFA challenge when any of these
say so, in order: the X-MFA-Required header, an mfa_type field, a code of
email_mfa_required or totp_required, or the detail text ("TOTP code
required", "Email verification code required").

# Retries and Timeouts

Each attempt is bounded by Timeout. RetryPolicies decides, per Operation, how
many attempts are made and which kinds trigger another one; backoff is
exponential. Credential submissions and logout are never retried, and a
refresh is only retried when the request could not have reached the server.

ExchangeRefreshToken tries the device validated refresh first and falls back
to the plain refresh for the kinds listed in the OpRefreshWithDevice policy.

# Logging

NewSDKClient installs slogx.Transport, which stamps X-Request-ID on every
request and logs method, path, status and duration at debug level. Tokens and
bodies are never logged.
*/
package authsdk
