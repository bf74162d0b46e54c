package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// newBackend serves just enough of the auth API for the commands under test.
// u@x.com / pw has email MFA with the fixed code 424242.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	var mu sync.Mutex
	seq := 0
	live := map[string]bool{}

	issue := func(w http.ResponseWriter) {
		mu.Lock()
		defer mu.Unlock()
		seq++
		a, r := "A"+string(rune('0'+seq)), "R"+string(rune('0'+seq))
		live[a] = true
		writeBody(w, http.StatusOK, map[string]any{"access_token": a, "refresh_token": r})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Code     string `json:"totp_code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		switch {
		case req.Email != "u@x.com" || req.Password != "pw":
			writeBody(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
		case req.Code == "":
			w.Header().Set("X-MFA-Required", "email")
			writeBody(w, http.StatusBadRequest, map[string]string{"detail": "Email verification code required"})
		case req.Code != "424242":
			writeBody(w, http.StatusBadRequest, map[string]string{"detail": "Invalid verification code"})
		default:
			issue(w)
		}
	})
	mux.HandleFunc("POST /api/email-mfa/send-login-code", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusOK, map[string]string{"message": "sent"})
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		issue(w)
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ok := live[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		mu.Unlock()
		if !ok {
			writeBody(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		writeBody(w, http.StatusOK, map[string]any{"id": 1, "email": "u@x.com", "full_name": "Test User", "email_mfa_enabled": true})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusOK, map[string]string{"message": "bye"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setupEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("SUPPORTCHAT_BASE_URL", baseURL)
	t.Setenv("SUPPORTCHAT_TENANT_ID", "tenant-1")
	t.Setenv("SUPPORTCHAT_DATA_DIR", t.TempDir())
	t.Setenv("SUPPORTCHAT_LOG_LEVEL", "error")
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCLI_LoginStatusLogout(t *testing.T) {
	srv := newBackend(t)
	setupEnv(t, srv.URL)

	code, out, errOut := runCLI(t, "pw\n000000\n424242\n", "login", "u@x.com")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "code sent to u@x.com")
	require.Contains(t, out, "Incorrect email, password or code.")
	require.Contains(t, out, "signed in as u@x.com")

	code, out, _ = runCLI(t, "", "status")
	require.Equal(t, 0, code)
	require.Contains(t, out, "status: authenticated")
	require.Contains(t, out, "user: u@x.com")
	require.Contains(t, out, "biometric: off")

	code, out, _ = runCLI(t, "", "me")
	require.Equal(t, 0, code)
	require.Contains(t, out, "name: Test User")

	code, out, _ = runCLI(t, "", "logout")
	require.Equal(t, 0, code)
	require.Contains(t, out, "signed out")

	code, out, _ = runCLI(t, "", "status")
	require.Equal(t, 0, code)
	require.Contains(t, out, "status: unauthenticated")
}

func TestCLI_LoginFailure(t *testing.T) {
	srv := newBackend(t)
	setupEnv(t, srv.URL)

	code, _, errOut := runCLI(t, "wrong\n", "login", "u@x.com")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "Incorrect email, password or code.")
}

func TestCLI_Usage(t *testing.T) {
	srv := newBackend(t)
	setupEnv(t, srv.URL)

	code, _, errOut := runCLI(t, "")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "usage: supportchat")

	code, _, _ = runCLI(t, "", "login")
	require.Equal(t, 2, code)

	code, _, _ = runCLI(t, "", "bogus")
	require.Equal(t, 2, code)
}

func TestCLI_MissingConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SUPPORTCHAT_BASE_URL", "")
	t.Setenv("SUPPORTCHAT_TENANT_ID", "")

	code, _, errOut := runCLI(t, "", "status")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "BASE_URL must be set")
}

func TestTerminalPrompter(t *testing.T) {
	var out bytes.Buffer
	p := &terminalPrompter{in: bufio.NewReader(strings.NewReader("y\nno\n")), out: &out}

	ok, err := p.Authenticate(t.Context(), "Enable biometric sign-in")
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, out.String(), "Enable biometric sign-in [y/N]: ")

	ok, err = p.Authenticate(t.Context(), "Sign in")
	require.NoError(t, err)
	require.False(t, ok)

	a, err := p.Availability(t.Context())
	require.NoError(t, err)
	require.True(t, a.Available)
}
