package sqlite

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/internal/auth/store"
)

type tokensRepo struct {
	it items
}

var errIncompletePair = errors.New("sqlite: token pair must carry both access and refresh token")

func (r *tokensRepo) GetTokenPair(ctx context.Context) (domain.TokenPair, error) {
	var p domain.TokenPair
	err := r.it.atomic(ctx, func(it items) error {
		var err error
		if p.AccessToken, err = it.get(ctx, store.KeyAccessToken); err != nil {
			return err
		}
		if p.RefreshToken, err = it.get(ctx, store.KeyRefreshToken); err != nil {
			return err
		}
		if p.TokenType, err = it.getOptional(ctx, store.KeyTokenType); err != nil {
			return err
		}

		exp, err := it.getOptional(ctx, store.KeyExpiresAt)
		if err != nil {
			return err
		}
		if exp != "" {
			if p.ExpiresAt, err = time.Parse(time.RFC3339Nano, exp); err != nil {
				return store.ErrCorrupt
			}
		}

		pcr, err := it.getOptional(ctx, store.KeyPasswordChange)
		if err != nil {
			return err
		}
		p.PasswordChangeRequired, _ = strconv.ParseBool(pcr)
		return nil
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	if !p.Complete() {
		return domain.TokenPair{}, store.ErrNotFound
	}
	return p, nil
}

func (r *tokensRepo) SaveTokenPair(ctx context.Context, p domain.TokenPair) error {
	if !p.Complete() {
		return errIncompletePair
	}

	var exp string
	if !p.ExpiresAt.IsZero() {
		exp = p.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	var pcr string
	if p.PasswordChangeRequired {
		pcr = "true"
	}

	return r.it.atomic(ctx, func(it items) error {
		if err := it.put(ctx, store.KeyAccessToken, p.AccessToken); err != nil {
			return err
		}
		if err := it.put(ctx, store.KeyRefreshToken, p.RefreshToken); err != nil {
			return err
		}
		if err := it.putOrDelete(ctx, store.KeyTokenType, p.TokenType); err != nil {
			return err
		}
		if err := it.putOrDelete(ctx, store.KeyExpiresAt, exp); err != nil {
			return err
		}
		return it.putOrDelete(ctx, store.KeyPasswordChange, pcr)
	})
}

func (r *tokensRepo) DeleteTokenPair(ctx context.Context) error {
	return r.it.atomic(ctx, func(it items) error {
		return it.del(ctx, store.TokenKeys...)
	})
}
