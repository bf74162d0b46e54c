package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/internal/auth/store"
)

type profilesRepo struct {
	it items
}

// Profiles are stored as JSON under a single key.

func (r *profilesRepo) GetProfile(ctx context.Context) (domain.UserProfile, error) {
	raw, err := r.it.get(ctx, store.KeyUserProfile)
	if err != nil {
		return domain.UserProfile{}, err
	}

	var p domain.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.UserProfile{}, fmt.Errorf("%w: %v", store.ErrCorrupt, err)
	}
	return p, nil
}

func (r *profilesRepo) SaveProfile(ctx context.Context, p domain.UserProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.it.put(ctx, store.KeyUserProfile, string(raw))
}

func (r *profilesRepo) DeleteProfile(ctx context.Context) error {
	return r.it.del(ctx, store.KeyUserProfile)
}
