package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// Error Taxonomy
// ============================================================================

// Kind is the closed set of failure classes every SDK call maps to. Callers
// branch on Kind, never on raw transport errors or HTTP status codes.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindEmailNotVerified
	KindMFARequiredEmail
	KindMFARequiredTOTP
	KindAccountLocked
	KindRateLimited
	KindUnauthorized
	KindDeviceNotRecognized
	KindServerUnavailable
	KindTimeout
	KindNetworkUnreachable
	KindSecurityMismatch
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindInvalidCredentials:  "invalid_credentials",
	KindEmailNotVerified:    "email_not_verified",
	KindMFARequiredEmail:    "mfa_required_email",
	KindMFARequiredTOTP:     "mfa_required_totp",
	KindAccountLocked:       "account_locked",
	KindRateLimited:         "rate_limited",
	KindUnauthorized:        "unauthorized",
	KindDeviceNotRecognized: "device_not_recognized",
	KindServerUnavailable:   "server_unavailable",
	KindTimeout:             "timeout",
	KindNetworkUnreachable:  "network_unreachable",
	KindSecurityMismatch:    "security_mismatch",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Transient reports whether the failure says nothing about the validity of the
// session. Transient failures must never destroy session state.
func (k Kind) Transient() bool {
	switch k {
	case KindTimeout, KindNetworkUnreachable, KindServerUnavailable, KindRateLimited:
		return true
	default:
		return false
	}
}

// Terminal reports whether the failure invalidates the current token pair.
func (k Kind) Terminal() bool {
	switch k {
	case KindUnauthorized, KindSecurityMismatch, KindDeviceNotRecognized:
		return true
	default:
		return false
	}
}

// MFARequired reports whether the failure is an MFA challenge rather than an
// actual failure.
func (k Kind) MFARequired() bool {
	return k == KindMFARequiredEmail || k == KindMFARequiredTOTP
}

// Error is the only error type returned by SDKClient methods.
type Error struct {
	// Kind is the taxonomy member this failure maps to
	Kind Kind

	// Op is the SDK operation that failed (empty for predefined errors)
	Op Operation

	// StatusCode is the HTTP status code, 0 when no response was received
	StatusCode int

	// Code is the machine readable error code from the response body, if any
	Code string

	// Message is the server supplied (or synthesised) description
	Message string

	// RetryAfter is parsed from the Retry-After header on 429 responses
	RetryAfter time.Duration

	// Err is the underlying cause (transport or decode error)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrUnauthorized)
// works regardless of operation or status code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// UserMessage returns a short message suitable for showing to the user.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindInvalidCredentials:
		return "Incorrect email, password or code."
	case KindEmailNotVerified:
		return "Please verify your email address before signing in."
	case KindMFARequiredEmail:
		return "A verification code has been sent to your email."
	case KindMFARequiredTOTP:
		return "Enter the code from your authenticator app."
	case KindAccountLocked:
		return "Your account is locked. Please contact support."
	case KindRateLimited:
		return "Too many attempts. Please wait and try again."
	case KindUnauthorized:
		return "Your session has expired. Please sign in again."
	case KindDeviceNotRecognized:
		return "This device is not recognised. Please sign in with your password."
	case KindServerUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	case KindTimeout:
		return "The request timed out. Please check your connection."
	case KindNetworkUnreachable:
		return "No connection. Please check your network."
	case KindSecurityMismatch:
		return "For your security, biometric sign-in has been turned off. Please sign in with your password."
	default:
		if e.Message != "" {
			return e.Message
		}
		return "Something went wrong. Please try again."
	}
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials}
	ErrEmailNotVerified    = &Error{Kind: KindEmailNotVerified}
	ErrMFARequiredEmail    = &Error{Kind: KindMFARequiredEmail}
	ErrMFARequiredTOTP     = &Error{Kind: KindMFARequiredTOTP}
	ErrAccountLocked       = &Error{Kind: KindAccountLocked}
	ErrRateLimited         = &Error{Kind: KindRateLimited}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrDeviceNotRecognized = &Error{Kind: KindDeviceNotRecognized}
	ErrServerUnavailable   = &Error{Kind: KindServerUnavailable}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrNetworkUnreachable  = &Error{Kind: KindNetworkUnreachable}
	ErrSecurityMismatch    = &Error{Kind: KindSecurityMismatch}
	ErrUnknown             = &Error{Kind: KindUnknown}
)

// NewError creates an Error of the given kind. Used by callers that detect
// taxonomy failures locally (e.g. a biometric identity mismatch).
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the Kind from any error chain. Foreign errors are
// KindUnknown, nil is KindUnknown as well.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// Response markers used by the backend to signal MFA challenges and
// unverified accounts on the login endpoint.
const (
	HeaderMFARequired = "X-MFA-Required"

	mfaMethodEmail = "email"
	mfaMethodTOTP  = "totp"

	codeEmailNotVerified = "email_not_verified"
	codeEmailMFARequired = "email_mfa_required"
	codeTOTPRequired     = "totp_required"
)

// errorBody covers the body shapes the backend produces: {"detail": "..."},
// {"detail": {"code": "...", "message": "..."}}, {"error": ..., "error_description": ...}
// and {"code": ..., "message": ...}.
type errorBody struct {
	Detail           json.RawMessage `json:"detail"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Code             string          `json:"code"`
	Message          string          `json:"message"`
	MFAType          string          `json:"mfa_type"`
}

// parsedBody is the normalised form of errorBody.
type parsedBody struct {
	code    string
	message string
	mfaType string
}

func parseBody(body []byte) parsedBody {
	var raw errorBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return parsedBody{message: strings.TrimSpace(string(body))}
	}

	out := parsedBody{
		code:    firstNonEmpty(raw.Code, raw.Error),
		message: firstNonEmpty(raw.Message, raw.ErrorDescription),
		mfaType: strings.ToLower(raw.MFAType),
	}

	if len(raw.Detail) > 0 {
		var detailStr string
		if err := json.Unmarshal(raw.Detail, &detailStr); err == nil {
			out.message = firstNonEmpty(detailStr, out.message)
		} else {
			var detailObj struct {
				Code    string `json:"code"`
				Message string `json:"message"`
				MFAType string `json:"mfa_type"`
			}
			if err := json.Unmarshal(raw.Detail, &detailObj); err == nil {
				out.code = firstNonEmpty(detailObj.Code, out.code)
				out.message = firstNonEmpty(detailObj.Message, out.message)
				out.mfaType = firstNonEmpty(strings.ToLower(detailObj.MFAType), out.mfaType)
			}
		}
	}

	return out
}

// mfaKind inspects response metadata for an MFA challenge. The header wins over
// the body; the body is checked by explicit type, then by code, then by text.
func mfaKind(header http.Header, pb parsedBody) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(header.Get(HeaderMFARequired))) {
	case mfaMethodEmail:
		return KindMFARequiredEmail, true
	case mfaMethodTOTP:
		return KindMFARequiredTOTP, true
	}

	switch pb.mfaType {
	case mfaMethodEmail:
		return KindMFARequiredEmail, true
	case mfaMethodTOTP:
		return KindMFARequiredTOTP, true
	}

	switch strings.ToLower(pb.code) {
	case codeEmailMFARequired:
		return KindMFARequiredEmail, true
	case codeTOTPRequired:
		return KindMFARequiredTOTP, true
	}

	msg := strings.ToLower(pb.message)
	switch {
	case strings.Contains(msg, "totp code required"):
		return KindMFARequiredTOTP, true
	case strings.Contains(msg, "email") && strings.Contains(msg, "code required"):
		return KindMFARequiredEmail, true
	}

	return KindUnknown, false
}

func isEmailNotVerified(pb parsedBody) bool {
	if strings.EqualFold(pb.code, codeEmailNotVerified) {
		return true
	}
	msg := strings.ToLower(pb.message)
	return strings.Contains(msg, "email not verified") || strings.Contains(msg, "verify your email")
}

// parseErrorResponse maps a non-2xx (or HTML) response into the taxonomy. The
// mapping is operation aware: a 401 on login means bad credentials, a 401 on
// /me means the access token is no longer valid.
func parseErrorResponse(op Operation, resp *response) error {
	e := &Error{Op: op, StatusCode: resp.StatusCode}

	if isHTML(resp.Header, resp.Body) {
		e.Kind = KindServerUnavailable
		e.Message = "received an HTML error page instead of an API response"
		return e
	}

	pb := parseBody(resp.Body)
	e.Code = pb.code
	e.Message = pb.message

	switch status := resp.StatusCode; {
	case status == http.StatusBadRequest:
		if kind, ok := mfaKind(resp.Header, pb); ok && op.acceptsMFA() {
			e.Kind = kind
		} else if op.bearsCredentials() {
			e.Kind = KindInvalidCredentials
		} else if op.refreshes() {
			e.Kind = KindUnauthorized
		} else {
			e.Kind = KindUnknown
		}

	case status == http.StatusUnauthorized:
		if op.bearsCredentials() && !op.usesBearer() {
			e.Kind = KindInvalidCredentials
		} else {
			e.Kind = KindUnauthorized
		}

	case status == http.StatusForbidden:
		switch {
		case isEmailNotVerified(pb):
			e.Kind = KindEmailNotVerified
		case op == OpRefreshWithDevice:
			e.Kind = KindDeviceNotRecognized
		case op == OpRefresh:
			e.Kind = KindUnauthorized
		default:
			e.Kind = KindUnknown
		}

	case status == http.StatusUnprocessableEntity:
		if op.bearsCredentials() {
			e.Kind = KindInvalidCredentials
		} else if op.refreshes() {
			e.Kind = KindUnauthorized
		} else {
			e.Kind = KindUnknown
		}

	case status == http.StatusLocked:
		e.Kind = KindAccountLocked

	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))

	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Kind = KindTimeout

	case status >= 500:
		e.Kind = KindServerUnavailable

	default:
		e.Kind = KindUnknown
	}

	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}

	return e
}

// classifyTransportError maps errors from http.Client.Do (or reading the body)
// into the taxonomy. Nothing from net, url or context escapes unclassified.
func classifyTransportError(op Operation, err error) error {
	e := &Error{Op: op, Err: err}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindTimeout
		e.Message = "request timed out"
	case errors.Is(err, context.Canceled):
		e.Kind = KindTimeout
		e.Message = "request cancelled"
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Kind = KindTimeout
		e.Message = "request timed out"
	default:
		e.Kind = KindNetworkUnreachable
		e.Message = "could not reach the server"
	}

	return e
}

// isHTML sniffs for proxy or load balancer error pages.
func isHTML(header http.Header, body []byte) bool {
	if strings.Contains(strings.ToLower(header.Get("Content-Type")), "text/html") {
		return true
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}

	head := strings.ToLower(string(trimmed[:min(len(trimmed), 64)]))
	if strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html") {
		return true
	}

	return strings.HasPrefix(http.DetectContentType(trimmed), "text/html")
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
