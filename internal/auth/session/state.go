package session

import (
	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
)

// Status names a State for logs and display.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticating  Status = "authenticating"
	StatusAwaitingOTP     Status = "awaiting_otp"
	StatusAuthenticated   Status = "authenticated"
	StatusSessionExpired  Status = "session_expired"
	StatusError           Status = "error"
)

// State is the closed union of session states. Exactly one holds at a time.
type State interface {
	Status() Status
	isState()
}

type Unauthenticated struct{}

type Authenticating struct{}

// AwaitingOTP holds while an MFA challenge is pending. The password stays
// inside the controller and is never published.
type AwaitingOTP struct {
	Email  string
	Method domain.MFAMethod

	// Attempts counts failed code submissions
	Attempts int

	// LastError describes the last failed submission, empty after a challenge
	LastError string
}

type Authenticated struct {
	User   domain.UserProfile
	Tokens domain.TokenPair

	// PasswordChangeRequired means the caller must route to the forced
	// password change before treating the login as complete.
	PasswordChangeRequired bool
}

// SessionExpired is rendered as a redirect to login with a one-time notice.
// Security is set when recovery ended at an identity gate; Notice then
// carries the security alert instead of the plain expiry text.
type SessionExpired struct {
	Notice   string
	Security bool
	Code     string
}

type Error struct {
	Message string
	Kind    authsdk.Kind
	Code    string

	// Security marks identity-gate failures that need a distinct alert.
	Security bool
}

func (Unauthenticated) Status() Status { return StatusUnauthenticated }
func (Authenticating) Status() Status  { return StatusAuthenticating }
func (AwaitingOTP) Status() Status     { return StatusAwaitingOTP }
func (Authenticated) Status() Status   { return StatusAuthenticated }
func (SessionExpired) Status() Status  { return StatusSessionExpired }
func (Error) Status() Status           { return StatusError }

func (Unauthenticated) isState() {}
func (Authenticating) isState()  {}
func (AwaitingOTP) isState()     {}
func (Authenticated) isState()   {}
func (SessionExpired) isState()  {}
func (Error) isState()           {}

// LoginOutcome tells the caller where a login attempt landed.
type LoginOutcome int

const (
	OutcomeFailed LoginOutcome = iota
	OutcomeAuthenticated
	OutcomeAwaitingOTP
	OutcomePasswordChangeRequired
)

func (o LoginOutcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeAwaitingOTP:
		return "awaiting_otp"
	case OutcomePasswordChangeRequired:
		return "password_change_required"
	default:
		return "failed"
	}
}

// errorState builds the Error state for err.
func errorState(err error) Error {
	kind := authsdk.KindOf(err)

	var msg, code string
	var ae *authsdk.Error
	if asError(err, &ae) {
		msg, code = ae.UserMessage(), ae.Code
	} else {
		msg = err.Error()
	}

	return Error{
		Message:  msg,
		Kind:     kind,
		Code:     code,
		Security: kind == authsdk.KindSecurityMismatch,
	}
}
