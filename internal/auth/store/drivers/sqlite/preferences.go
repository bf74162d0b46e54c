package sqlite

import (
	"context"
	"strconv"

	"github.com/aussiebroadwan/supportchat/internal/auth/store"
)

type preferencesRepo struct {
	it items
}

func (r *preferencesRepo) IntentionalLogout(ctx context.Context) (bool, error) {
	v, err := r.it.getOptional(ctx, store.KeyIntentionalLogout)
	if err != nil {
		return false, err
	}
	on, _ := strconv.ParseBool(v)
	return on, nil
}

func (r *preferencesRepo) SetIntentionalLogout(ctx context.Context, v bool) error {
	if !v {
		return r.it.del(ctx, store.KeyIntentionalLogout)
	}
	return r.it.put(ctx, store.KeyIntentionalLogout, "true")
}
