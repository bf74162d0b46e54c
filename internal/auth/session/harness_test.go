package session_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/internal/auth/session"
	"github.com/aussiebroadwan/supportchat/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/supportchat/internal/auth/vault"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
	"github.com/aussiebroadwan/supportchat/pkg/cryptox"
	"github.com/aussiebroadwan/supportchat/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	pathLogin    = "/api/auth/login"
	pathSendCode = "/api/email-mfa/send-login-code"
	pathMe       = "/api/auth/me"
	pathRefresh  = "/api/auth/refresh"
	pathLogout   = "/api/auth/logout"
	pathRegister = "/api/biometric/register"
	pathRemove   = "/api/biometric/remove-device"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakePrompter struct {
	mu        sync.Mutex
	available bool
	pass      bool
	prompts   int
}

func (p *fakePrompter) Availability(context.Context) (domain.Availability, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.available {
		return domain.Availability{Kind: domain.BiometryNone}, nil
	}
	return domain.Availability{Available: true, Kind: domain.BiometryFace}, nil
}

func (p *fakePrompter) Authenticate(context.Context, string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts++
	return p.pass, nil
}

func (p *fakePrompter) set(available, pass bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = available
	p.pass = pass
}

// recorder collects every published state.
type recorder struct {
	mu     sync.Mutex
	states []session.State
}

func (r *recorder) statuses() []session.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Status, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.Status())
	}
	return out
}

func (r *recorder) snapshot() []session.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.State(nil), r.states...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = nil
}

type harness struct {
	t        *testing.T
	backend  *fakeBackend
	api      *authsdk.SDKClient
	store    *sqlite.Store
	prompter *fakePrompter
	vault    *vault.Vault
	clock    *fakeClock
	ctrl     *session.Controller
	rec      *recorder
}

// newHarness wires a controller to a fake backend and a sqlite store in a
// temp dir. One user, u@x.com / pw, exists.
func newHarness(t *testing.T) *harness {
	t.Helper()

	fb := newFakeBackend(t)
	fb.addUser(fakeUser{Email: "u@x.com", Password: "pw", FullName: "Test User"})

	api := authsdk.NewSDKClient(fb.srv.URL, "tenant-1", authsdk.ClientInfo{
		AppName:    "SupportChat",
		AppVersion: "test",
		AppType:    "support-assistant",
	})
	api.Timeout = 2 * time.Second
	api.Logger = slogx.Discard()
	for op, p := range api.RetryPolicies {
		p.InitialBackoff = time.Millisecond
		p.MaxBackoff = time.Millisecond
		api.RetryPolicies[op] = p
	}

	sealer, err := cryptox.NewSealer([]byte("session-test-master-key"), "secure-store")
	require.NoError(t, err)

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"), sealer, "")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	p := &fakePrompter{available: true, pass: true}

	v := vault.New(st, p, api)
	v.DeviceName = "Test Phone"
	v.DeviceModel = "T1"
	v.KeySecret = []byte("install-secret")
	v.Logger = slogx.Discard()

	h := &harness{
		t:        t,
		backend:  fb,
		api:      api,
		store:    st,
		prompter: p,
		vault:    v,
		clock:    &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
	}
	h.ctrl, h.rec = h.newController()
	return h
}

// newController builds a controller over the same store and backend, which is
// what a process restart looks like.
func (h *harness) newController() (*session.Controller, *recorder) {
	c := session.New(h.api, h.vault, h.store, session.Config{Now: h.clock.Now}, slogx.Discard())
	h.t.Cleanup(func() { _ = c.Close() })

	rec := &recorder{}
	c.Subscribe(func(s session.State) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.states = append(rec.states, s)
	})
	return c, rec
}

func (h *harness) login(email, password string) session.Authenticated {
	h.t.Helper()
	outcome, err := h.ctrl.Login(h.t.Context(), email, password)
	require.NoError(h.t, err)
	require.Equal(h.t, session.OutcomeAuthenticated, outcome)
	return h.authenticated()
}

func (h *harness) enableBiometric() {
	h.t.Helper()
	ok, err := h.ctrl.EnableBiometric(h.t.Context())
	require.NoError(h.t, err)
	require.True(h.t, ok)
}

func (h *harness) authenticated() session.Authenticated {
	h.t.Helper()
	return requireAuthenticated(h.t, h.ctrl)
}

func requireAuthenticated(t *testing.T, c *session.Controller) session.Authenticated {
	t.Helper()
	auth, ok := c.State().(session.Authenticated)
	require.True(t, ok, "expected authenticated, got %s", c.State().Status())
	return auth
}

func (h *harness) storedRefreshToken() string {
	h.t.Helper()
	tokens, err := h.store.Tokens().GetTokenPair(h.t.Context())
	require.NoError(h.t, err)
	return tokens.RefreshToken
}

func (h *harness) boundRefreshToken() string {
	h.t.Helper()
	rec, err := h.store.Biometrics().GetBiometricRecord(h.t.Context())
	require.NoError(h.t, err)
	return rec.RefreshToken
}
