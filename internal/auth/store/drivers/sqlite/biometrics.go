package sqlite

import (
	"context"
	"errors"
	"strconv"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/internal/auth/store"
)

type biometricsRepo struct {
	it items
}

var errUnusableRecord = errors.New("sqlite: biometric record requires refresh token, fingerprint and email")

func (r *biometricsRepo) GetBiometricRecord(ctx context.Context) (domain.BiometricRecord, error) {
	var rec domain.BiometricRecord
	err := r.it.atomic(ctx, func(it items) error {
		enabled, err := it.getOptional(ctx, store.KeyBiometricEnabled)
		if err != nil {
			return err
		}
		if on, _ := strconv.ParseBool(enabled); !on {
			return store.ErrNotFound
		}

		if rec.RefreshToken, err = it.getOptional(ctx, store.KeyBiometricRefreshToken); err != nil {
			return err
		}
		if rec.DeviceFingerprint, err = it.getOptional(ctx, store.KeyBiometricFingerprint); err != nil {
			return err
		}
		rec.BoundEmail, err = it.getOptional(ctx, store.KeyBiometricEmail)
		return err
	})
	if err != nil {
		return domain.BiometricRecord{}, err
	}

	// A token without its bound email is not usable.
	if !rec.Usable() {
		return domain.BiometricRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (r *biometricsRepo) SaveBiometricRecord(ctx context.Context, rec domain.BiometricRecord) error {
	rec.BoundEmail = domain.NormalizeEmail(rec.BoundEmail)
	if !rec.Usable() {
		return errUnusableRecord
	}

	return r.it.atomic(ctx, func(it items) error {
		if err := it.put(ctx, store.KeyBiometricRefreshToken, rec.RefreshToken); err != nil {
			return err
		}
		if err := it.put(ctx, store.KeyBiometricFingerprint, rec.DeviceFingerprint); err != nil {
			return err
		}
		if err := it.put(ctx, store.KeyBiometricEmail, rec.BoundEmail); err != nil {
			return err
		}
		return it.put(ctx, store.KeyBiometricEnabled, "true")
	})
}

func (r *biometricsRepo) UpdateBiometricToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return errUnusableRecord
	}

	return r.it.atomic(ctx, func(it items) error {
		rec, err := (&biometricsRepo{it: it}).GetBiometricRecord(ctx)
		if err != nil {
			return err
		}
		if rec.RefreshToken == refreshToken {
			return nil
		}
		return it.put(ctx, store.KeyBiometricRefreshToken, refreshToken)
	})
}

func (r *biometricsRepo) DeleteBiometricRecord(ctx context.Context) error {
	return r.it.atomic(ctx, func(it items) error {
		return it.del(ctx, store.BiometricKeys...)
	})
}
