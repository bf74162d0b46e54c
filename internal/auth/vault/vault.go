// Package vault is the Biometric Credential Vault: a refresh token bound to
// one verified user email and a device fingerprint, released only after a
// platform biometric prompt.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/internal/auth/store"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
	"github.com/aussiebroadwan/supportchat/pkg/cryptox"
	"github.com/google/uuid"
)

// Prompter is the platform biometric capability.
type Prompter interface {
	// Availability reports whether biometric hardware is present and enrolled.
	Availability(ctx context.Context) (domain.Availability, error)

	// Authenticate shows the biometric prompt. false means the user cancelled
	// or the match failed.
	Authenticate(ctx context.Context, reason string) (bool, error)
}

// Registrar registers and removes this device with the backend.
// *authsdk.SDKClient satisfies it.
type Registrar interface {
	RegisterBiometricDevice(ctx context.Context, accessToken string, req authsdk.BiometricRegisterRequest) error
	RemoveBiometricDevice(ctx context.Context, accessToken, deviceFingerprint string) error
}

// DefaultPromptReason is shown by the biometric prompt.
const DefaultPromptReason = "Sign in to Support Chat"

var ErrInvalidBinding = errors.New("vault: refresh token, fingerprint and email are required")

type Vault struct {
	Store     store.Store
	Prompter  Prompter
	Registrar Registrar

	// DeviceName and DeviceModel are sent with the registration
	DeviceName  string
	DeviceModel string

	// KeySecret seeds the device public key sent at registration
	KeySecret []byte

	// PromptReason overrides DefaultPromptReason
	PromptReason string

	Logger *slog.Logger
}

func New(st store.Store, prompter Prompter, registrar Registrar) *Vault {
	return &Vault{
		Store:     st,
		Prompter:  prompter,
		Registrar: registrar,
	}
}

func (v *Vault) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

// IsAvailable is the capability check. It is independent of whether biometric
// login is enabled; failures read as unavailable.
func (v *Vault) IsAvailable(ctx context.Context) domain.Availability {
	if v.Prompter == nil {
		return domain.Availability{Kind: domain.BiometryNone}
	}

	a, err := v.Prompter.Availability(ctx)
	if err != nil {
		v.logger().Debug("biometric availability check failed", "error", err)
		return domain.Availability{Kind: domain.BiometryNone}
	}
	return a
}

// Record returns the stored binding. Anything but a complete record, including
// a read error, is reported as store.ErrNotFound.
func (v *Vault) Record(ctx context.Context) (domain.BiometricRecord, error) {
	rec, err := v.Store.Biometrics().GetBiometricRecord(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			v.logger().Warn("biometric record unreadable, treating as absent", "error", err)
		}
		return domain.BiometricRecord{}, store.ErrNotFound
	}
	return rec, nil
}

// IsEnabled reports whether a usable record exists.
func (v *Vault) IsEnabled(ctx context.Context) bool {
	_, err := v.Record(ctx)
	return err == nil
}

// DeviceFingerprint returns the fingerprint of the current binding, or a new
// random one when biometric login is not enabled.
func (v *Vault) DeviceFingerprint(ctx context.Context) string {
	if rec, err := v.Record(ctx); err == nil {
		return rec.DeviceFingerprint
	}
	return uuid.NewString()
}

// Enable registers the device with the backend (best-effort) and persists the
// binding. Only a local storage failure is returned.
func (v *Vault) Enable(ctx context.Context, refreshToken, accessToken, deviceFingerprint, email string) error {
	email = domain.NormalizeEmail(email)
	if refreshToken == "" || deviceFingerprint == "" || email == "" {
		return ErrInvalidBinding
	}

	v.register(ctx, accessToken, deviceFingerprint)

	rec := domain.BiometricRecord{
		RefreshToken:      refreshToken,
		DeviceFingerprint: deviceFingerprint,
		BoundEmail:        email,
	}
	if err := v.Store.Biometrics().SaveBiometricRecord(ctx, rec); err != nil {
		return fmt.Errorf("vault: persist binding: %w", err)
	}

	v.logger().Info("biometric login enabled",
		"device", deviceFingerprint,
		"refresh_fp", cryptox.FingerprintToken(refreshToken),
	)
	return nil
}

func (v *Vault) register(ctx context.Context, accessToken, deviceFingerprint string) {
	if v.Registrar == nil || accessToken == "" {
		return
	}

	req := authsdk.BiometricRegisterRequest{
		DeviceFingerprint: deviceFingerprint,
		DeviceName:        v.DeviceName,
		DeviceModel:       v.DeviceModel,
	}

	if len(v.KeySecret) > 0 {
		pub, err := cryptox.DevicePublicKeyPEM(deviceFingerprint, v.KeySecret)
		if err != nil {
			v.logger().Warn("failed to derive device key", "error", err)
		} else {
			req.PublicKey = pub
		}
	}

	if err := v.Registrar.RegisterBiometricDevice(ctx, accessToken, req); err != nil {
		v.logger().Warn("biometric device registration failed, continuing",
			"device", deviceFingerprint,
			"kind", authsdk.KindOf(err),
		)
	}
}

// AuthenticateAndGetToken shows the biometric prompt and returns the stored
// refresh token on success. ok is false on cancel, prompt failure or when no
// usable binding exists. This is the only method that shows UI.
func (v *Vault) AuthenticateAndGetToken(ctx context.Context) (token string, ok bool) {
	rec, err := v.Record(ctx)
	if err != nil || v.Prompter == nil {
		return "", false
	}

	reason := v.PromptReason
	if reason == "" {
		reason = DefaultPromptReason
	}

	passed, err := v.Prompter.Authenticate(ctx, reason)
	if err != nil {
		v.logger().Debug("biometric prompt failed", "error", err)
		return "", false
	}
	if !passed {
		return "", false
	}

	return rec.RefreshToken, true
}

// Confirm shows the biometric prompt without releasing anything. Used to gate
// enrolment.
func (v *Vault) Confirm(ctx context.Context, reason string) bool {
	if v.Prompter == nil {
		return false
	}
	passed, err := v.Prompter.Authenticate(ctx, reason)
	if err != nil {
		v.logger().Debug("biometric prompt failed", "error", err)
		return false
	}
	return passed
}

// StoredToken returns the stored refresh token without prompting. It is only
// for silent recovery, never for a user initiated login.
func (v *Vault) StoredToken(ctx context.Context) (string, bool) {
	rec, err := v.Record(ctx)
	if err != nil {
		return "", false
	}
	return rec.RefreshToken, true
}

// Rebind swaps in a rotated refresh token, keeping the bound email.
func (v *Vault) Rebind(ctx context.Context, refreshToken string) error {
	if err := v.Store.Biometrics().UpdateBiometricToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("vault: rebind: %w", err)
	}
	return nil
}

// Disable unregisters the device (best-effort, only when accessToken is
// given) and then unconditionally deletes the binding.
func (v *Vault) Disable(ctx context.Context, accessToken string) error {
	rec, err := v.Store.Biometrics().GetBiometricRecord(ctx)
	if err == nil && accessToken != "" && v.Registrar != nil {
		if err := v.Registrar.RemoveBiometricDevice(ctx, accessToken, rec.DeviceFingerprint); err != nil {
			v.logger().Warn("biometric device removal failed, continuing",
				"device", rec.DeviceFingerprint,
				"kind", authsdk.KindOf(err),
			)
		}
	}

	if err := v.Store.Biometrics().DeleteBiometricRecord(ctx); err != nil {
		return fmt.Errorf("vault: delete binding: %w", err)
	}

	v.logger().Info("biometric login disabled")
	return nil
}
