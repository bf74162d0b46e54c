package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/internal/auth/store"
	"github.com/aussiebroadwan/supportchat/internal/auth/vault"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
	"github.com/aussiebroadwan/supportchat/pkg/slogx"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// API is the subset of the auth backend the controller drives.
// *authsdk.SDKClient satisfies it.
type API interface {
	Login(ctx context.Context, email, password, totpCode string) (*authsdk.TokenResponse, error)
	SendLoginCode(ctx context.Context, email, password string) (*authsdk.MessageResponse, error)
	VerifyLoginCode(ctx context.Context, email, password, otp string) (*authsdk.TokenResponse, error)
	GetUserDetails(ctx context.Context, accessToken string) (*authsdk.UserResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*authsdk.TokenResponse, error)
	ExchangeRefreshToken(ctx context.Context, refreshToken, deviceFingerprint string) (*authsdk.TokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
	ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error
	ChangePasswordDirect(ctx context.Context, email, currentPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) (*authsdk.MessageResponse, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

const (
	DefaultValidationInterval = 30 * time.Minute
	DefaultResendInterval     = 30 * time.Second
)

var (
	ErrNotAuthenticated     = errors.New("session: not authenticated")
	ErrNoPendingLogin       = errors.New("session: no pending login")
	ErrBiometricNotEnabled  = errors.New("session: biometric login is not enabled")
	ErrBiometricUnavailable = errors.New("session: biometric authentication is unavailable")
	ErrResendUnsupported    = errors.New("session: authenticator codes are not delivered")
	ErrClosed               = errors.New("session: controller closed")

	// errStale is returned when a background flow lost the race against a
	// user flow and its result was dropped.
	errStale = errors.New("session: superseded by a newer transition")
)

type Config struct {
	// ValidationInterval throttles ValidateSessionBeforeRequest.
	ValidationInterval time.Duration

	// ResendInterval is the minimum gap between OTP deliveries.
	ResendInterval time.Duration

	// Now is the clock; nil uses time.Now.
	Now func() time.Time
}

// Controller owns the session. All methods are safe for concurrent use.
type Controller struct {
	api    API
	vault  *vault.Vault
	store  store.Store
	cfg    Config
	logger *slog.Logger

	// flowMu serialises user initiated flows (login, logout, enrolment).
	flowMu sync.Mutex

	// notifyMu keeps subscriber callbacks in transition order.
	notifyMu sync.Mutex

	// mu guards everything below.
	mu            sync.Mutex
	state         State
	epoch         uint64
	pending       domain.Credentials
	lastValidated time.Time
	subs          map[int]func(State)
	nextSub       int
	closed        bool

	flights   singleflight.Group
	resend    *rate.Limiter
	startOnce sync.Once
}

// New creates a controller in the Unauthenticated state. Call Start once to
// run app-start recovery.
func New(api API, v *vault.Vault, st store.Store, cfg Config, logger *slog.Logger) *Controller {
	if cfg.ValidationInterval <= 0 {
		cfg.ValidationInterval = DefaultValidationInterval
	}
	if cfg.ResendInterval <= 0 {
		cfg.ResendInterval = DefaultResendInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		api:    api,
		vault:  v,
		store:  st,
		cfg:    cfg,
		logger: logger,
		state:  Unauthenticated{},
		subs:   make(map[int]func(State)),
		resend: rate.NewLimiter(rate.Every(cfg.ResendInterval), 1),
	}
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to receive every state after a transition, in
// order. fn runs synchronously and must not call back into flows that
// transition state. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Close drops all subscribers and rejects further flows. It does not touch
// persisted state.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	clear(c.subs)
	c.pending = domain.Credentials{}
	return nil
}

func (c *Controller) now() time.Time { return c.cfg.Now() }

// flowContext tags ctx with the controller logger and the flow name so every
// request made on its behalf logs with the same attributes.
func (c *Controller) flowContext(ctx context.Context, flow string) context.Context {
	return slogx.WithOperation(slogx.WithContext(ctx, c.logger), flow)
}

// beginFlow takes the flow lock. The caller must call the returned func.
func (c *Controller) beginFlow() (func(), error) {
	c.flowMu.Lock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		c.flowMu.Unlock()
		return nil, ErrClosed
	}
	return c.flowMu.Unlock, nil
}

func (c *Controller) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *Controller) authenticated() (Authenticated, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.state.(Authenticated)
	return a, ok
}

// apply persists and publishes next while holding the state lock, so readers
// never see a half applied transition. A non-nil guard must still equal the
// current epoch, otherwise nothing happens and errStale is returned. Unguarded
// (user flow) transitions bump the epoch, invalidating in-flight recoveries.
func (c *Controller) apply(guard *uint64, persist func() error, next State) error {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if guard != nil && *guard != c.epoch {
		c.mu.Unlock()
		return errStale
	}

	if persist != nil {
		if err := persist(); err != nil {
			c.mu.Unlock()
			return err
		}
	}

	if guard == nil {
		c.epoch++
	}

	prev := c.state
	c.state = next
	if _, ok := next.(AwaitingOTP); !ok {
		c.pending = domain.Credentials{}
	}
	// Only the validation gate records validations; leaving the session
	// forgets them.
	if _, ok := next.(Authenticated); !ok {
		c.lastValidated = time.Time{}
	}

	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	if prev.Status() != next.Status() {
		c.logger.Info("session state changed", "from", prev.Status(), "to", next.Status())
	}

	for _, fn := range subs {
		fn(next)
	}
	return nil
}

// setState is an unguarded transition with nothing to persist.
func (c *Controller) setState(next State) {
	_ = c.apply(nil, nil, next)
}

// fail publishes the Error state for err and returns err.
func (c *Controller) fail(err error) error {
	c.setState(errorState(err))
	return err
}

// persistSession writes the pair and profile in one transaction and clears
// the intentional logout flag.
func (c *Controller) persistSession(ctx context.Context, tokens domain.TokenPair, user domain.UserProfile) func() error {
	return func() error {
		return c.store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Tokens().SaveTokenPair(ctx, tokens); err != nil {
				return err
			}
			if err := tx.Profiles().SaveProfile(ctx, user); err != nil {
				return err
			}
			return tx.Preferences().SetIntentionalLogout(ctx, false)
		})
	}
}

// clearSession removes the pair and profile. The biometric record stays.
func (c *Controller) clearSession(ctx context.Context) func() error {
	return func() error {
		return c.store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Tokens().DeleteTokenPair(ctx); err != nil {
				return err
			}
			return tx.Profiles().DeleteProfile(ctx)
		})
	}
}

// resetValidation makes the next validation gate call hit the network.
func (c *Controller) resetValidation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastValidated = time.Time{}
}

func authenticatedState(tokens domain.TokenPair, user domain.UserProfile) Authenticated {
	return Authenticated{
		User:                   user,
		Tokens:                 tokens,
		PasswordChangeRequired: tokens.PasswordChangeRequired || user.PasswordChangeRequired,
	}
}
