package session_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
	"github.com/pquerna/otp/totp"
)

// fakeUser is an account on the fake backend.
type fakeUser struct {
	ID                     int
	Email                  string
	Password               string
	FullName               string
	EmailMFA               bool
	TOTPSecret             string
	Biometric              bool
	PasswordChangeRequired bool
}

// fakeBackend is an in-memory auth backend speaking the real wire format.
// Refresh tokens rotate on use and logout only invalidates the access token.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	users     map[string]*fakeUser
	access    map[string]string // access token -> email
	refresh   map[string]string // refresh token -> email
	devices   map[string]string // device fingerprint -> email
	codes     map[string]string // email -> pending login code
	calls     map[string]int    // path -> request count
	hooks     map[string]func(w http.ResponseWriter, r *http.Request) bool
	seq       int
	codeSeq   int
	expiresIn int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	fb := &fakeBackend{
		t:       t,
		users:   make(map[string]*fakeUser),
		access:  make(map[string]string),
		refresh: make(map[string]string),
		devices: make(map[string]string),
		codes:   make(map[string]string),
		calls:   make(map[string]int),
		hooks:   make(map[string]func(w http.ResponseWriter, r *http.Request) bool),
	}

	mux := http.NewServeMux()
	fb.route(mux, "POST /api/auth/login", fb.login)
	fb.route(mux, "POST /api/email-mfa/send-login-code", fb.sendLoginCode)
	fb.route(mux, "GET /api/auth/me", fb.me)
	fb.route(mux, "POST /api/auth/refresh", fb.refreshToken)
	fb.route(mux, "POST /api/auth/logout", fb.logout)
	fb.route(mux, "POST /api/auth/change-password", fb.changePassword)
	fb.route(mux, "POST /api/auth/forgot-password", fb.forgotPassword)
	fb.route(mux, "POST /api/auth/reset-password", fb.resetPassword)
	fb.route(mux, "POST /api/biometric/register", fb.registerDevice)
	fb.route(mux, "DELETE /api/biometric/remove-device", fb.removeDevice)

	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	_, path, _ := strings.Cut(pattern, " ")
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.calls[path]++
		hook := fb.hooks[path]
		fb.mu.Unlock()

		if hook != nil && hook(w, r) {
			return
		}

		fb.mu.Lock()
		defer fb.mu.Unlock()
		h(w, r)
	})
}

// ============================================================================
// Test Controls
// ============================================================================

func (fb *fakeBackend) addUser(u fakeUser) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if u.ID == 0 {
		u.ID = len(fb.users) + 1
	}
	fb.users[u.Email] = &u
}

func (fb *fakeBackend) updateUser(email string, fn func(u *fakeUser)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fn(fb.users[email])
}

func (fb *fakeBackend) count(path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[path]
}

func (fb *fakeBackend) code(email string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.codes[email]
}

func (fb *fakeBackend) setExpiresIn(secs int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.expiresIn = secs
}

// hook runs fn before the handler for path. Returning true means fn wrote
// the response. fn runs without the backend lock held.
func (fb *fakeBackend) hook(path string, fn func(w http.ResponseWriter, r *http.Request) bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.hooks[path] = fn
}

func (fb *fakeBackend) clearHook(path string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	delete(fb.hooks, path)
}

// fail makes every request to path answer with status.
func (fb *fakeBackend) fail(path string, status int) {
	fb.hook(path, func(w http.ResponseWriter, _ *http.Request) bool {
		writeDetail(w, status, http.StatusText(status))
		return true
	})
}

// failOnce answers the next request to path with status, then behaves.
func (fb *fakeBackend) failOnce(path string, status int) {
	var once sync.Once
	fb.hook(path, func(w http.ResponseWriter, _ *http.Request) bool {
		failed := false
		once.Do(func() {
			writeDetail(w, status, http.StatusText(status))
			failed = true
		})
		return failed
	})
}

// revokeAccess invalidates every access token, as if they all expired.
func (fb *fakeBackend) revokeAccess() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	clear(fb.access)
}

// revokeRefresh invalidates every refresh token.
func (fb *fakeBackend) revokeRefresh() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	clear(fb.refresh)
}

// reassignRefresh makes every live refresh token resolve to email.
func (fb *fakeBackend) reassignRefresh(email string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for rt := range fb.refresh {
		fb.refresh[rt] = email
	}
}

func (fb *fakeBackend) deviceOwner(fp string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.devices[fp]
}

// ============================================================================
// Handlers (called with fb.mu held)
// ============================================================================

func (fb *fakeBackend) issue(u *fakeUser) map[string]any {
	fb.seq++
	access := fmt.Sprintf("A%d", fb.seq)
	refresh := fmt.Sprintf("R%d", fb.seq)
	fb.access[access] = u.Email
	fb.refresh[refresh] = u.Email

	resp := map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	}
	if fb.expiresIn > 0 {
		resp["expires_in"] = fb.expiresIn
	}
	if u.PasswordChangeRequired {
		resp["password_change_required"] = true
	}
	return resp
}

func (fb *fakeBackend) bearer(r *http.Request) (*fakeUser, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil, false
	}
	email, ok := fb.access[token]
	if !ok {
		return nil, false
	}
	return fb.users[email], true
}

func (fb *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	u := fb.users[req.Email]
	if u == nil || u.Password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	if u.EmailMFA {
		if req.TOTPCode == "" {
			w.Header().Set(authsdk.HeaderMFARequired, "email")
			writeDetail(w, http.StatusBadRequest, "Email verification code required")
			return
		}
		if req.TOTPCode != fb.codes[u.Email] {
			writeDetail(w, http.StatusBadRequest, "Invalid verification code")
			return
		}
		delete(fb.codes, u.Email)
	}

	if u.TOTPSecret != "" {
		if req.TOTPCode == "" {
			writeDetail(w, http.StatusBadRequest, "TOTP code required")
			return
		}
		if !totp.Validate(req.TOTPCode, u.TOTPSecret) {
			writeDetail(w, http.StatusBadRequest, "Invalid TOTP code")
			return
		}
	}

	writeJSON(w, http.StatusOK, fb.issue(u))
}

func (fb *fakeBackend) sendLoginCode(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SendLoginCodeRequest
	if !decode(w, r, &req) {
		return
	}

	u := fb.users[req.Email]
	if u == nil || u.Password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	fb.codeSeq++
	fb.codes[u.Email] = fmt.Sprintf("%06d", 100000+fb.codeSeq)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Verification code sent"})
}

func (fb *fakeBackend) me(w http.ResponseWriter, r *http.Request) {
	u, ok := fb.bearer(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":                       u.ID,
		"email":                    u.Email,
		"full_name":                u.FullName,
		"is_active":                true,
		"is_email_verified":        true,
		"email_mfa_enabled":        u.EmailMFA,
		"biometric_mfa_enabled":    u.Biometric,
		"totp_enabled":             u.TOTPSecret != "",
		"password_change_required": u.PasswordChangeRequired,
	})
}

func (fb *fakeBackend) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	email, ok := fb.refresh[req.RefreshToken]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	if req.DeviceFingerprint != "" && fb.devices[req.DeviceFingerprint] != email {
		writeDetail(w, http.StatusForbidden, "Device not recognized")
		return
	}

	delete(fb.refresh, req.RefreshToken)
	writeJSON(w, http.StatusOK, fb.issue(fb.users[email]))
}

func (fb *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := fb.bearer(r); !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	delete(fb.access, token)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (fb *fakeBackend) changePassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	var u *fakeUser
	if r.Header.Get("Authorization") != "" {
		var ok bool
		if u, ok = fb.bearer(r); !ok {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
	} else {
		u = fb.users[req.Email]
	}

	if u == nil || u.Password != req.CurrentPassword {
		writeDetail(w, http.StatusBadRequest, "Incorrect password")
		return
	}

	u.Password = req.NewPassword
	u.PasswordChangeRequired = false
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

func (fb *fakeBackend) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "If the account exists, a reset email has been sent"})
}

func (fb *fakeBackend) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Token != "reset-token" {
		writeDetail(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset"})
}

func (fb *fakeBackend) registerDevice(w http.ResponseWriter, r *http.Request) {
	u, ok := fb.bearer(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var req authsdk.BiometricRegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if req.DeviceFingerprint == "" || !strings.Contains(req.PublicKey, "PUBLIC KEY") {
		writeDetail(w, http.StatusUnprocessableEntity, "device_fingerprint and public_key are required")
		return
	}

	fb.devices[req.DeviceFingerprint] = u.Email
	u.Biometric = true
	writeJSON(w, http.StatusOK, map[string]string{"message": "Device registered"})
}

func (fb *fakeBackend) removeDevice(w http.ResponseWriter, r *http.Request) {
	u, ok := fb.bearer(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var req authsdk.BiometricRemoveRequest
	if !decode(w, r, &req) {
		return
	}

	delete(fb.devices, req.DeviceFingerprint)
	u.Biometric = false
	writeJSON(w, http.StatusOK, map[string]string{"message": "Device removed"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
