package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
)

var (
	ErrNotFound = errors.New("store: not found")

	// ErrCorrupt reports a stored value that could not be unsealed or decoded.
	ErrCorrupt = errors.New("store: corrupt value")
)

// Store is the Secure Token Store. Every record is a discrete key in a
// per-install namespace; there is no single blob. Sub-repositories keep the
// concerns apart and stop callers from nesting transactions.
type Store interface {
	Tokens() Tokens
	Profiles() Profiles
	Biometrics() Biometrics
	Preferences() Preferences

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Tokens interface {
	// GetTokenPair returns the stored pair, or ErrNotFound unless both the
	// access and refresh token are present.
	GetTokenPair(ctx context.Context) (domain.TokenPair, error)

	// SaveTokenPair writes every field of the pair atomically. Incomplete
	// pairs are rejected.
	SaveTokenPair(ctx context.Context, p domain.TokenPair) error

	DeleteTokenPair(ctx context.Context) error
}

type Profiles interface {
	GetProfile(ctx context.Context) (domain.UserProfile, error)
	SaveProfile(ctx context.Context, p domain.UserProfile) error
	DeleteProfile(ctx context.Context) error
}

type Biometrics interface {
	// GetBiometricRecord returns the record only when the enabled flag and all
	// three values are present. Partial state reads as ErrNotFound.
	GetBiometricRecord(ctx context.Context) (domain.BiometricRecord, error)

	// SaveBiometricRecord writes the enabled flag, refresh token, device
	// fingerprint and bound email in one atomic write.
	SaveBiometricRecord(ctx context.Context, r domain.BiometricRecord) error

	// UpdateBiometricToken swaps the stored refresh token, leaving the binding
	// untouched. Returns ErrNotFound when no usable record exists.
	UpdateBiometricToken(ctx context.Context, refreshToken string) error

	// DeleteBiometricRecord removes all four fields.
	DeleteBiometricRecord(ctx context.Context) error
}

type Preferences interface {
	// IntentionalLogout reports whether the last session ended via explicit
	// logout. Absent means false.
	IntentionalLogout(ctx context.Context) (bool, error)
	SetIntentionalLogout(ctx context.Context, v bool) error
}
