package session

import (
	"errors"
	"time"

	"github.com/aussiebroadwan/supportchat/internal/auth/domain"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
	"github.com/aussiebroadwan/supportchat/pkg/jwtx"
)

// tokensFromResponse builds a pair and computes its expiry from expires_in,
// falling back to the access token's exp claim.
func tokensFromResponse(resp *authsdk.TokenResponse, now time.Time) domain.TokenPair {
	p := domain.TokenPair{
		AccessToken:            resp.AccessToken,
		RefreshToken:           resp.RefreshToken,
		TokenType:              resp.TokenType,
		ExpiresIn:              resp.ExpiresIn,
		PasswordChangeRequired: resp.PasswordChangeRequired,
	}

	if resp.ExpiresIn > 0 {
		p.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	} else {
		p.ExpiresAt = jwtx.ExpiresAt(resp.AccessToken)
	}

	return p
}

func profileFromResponse(u *authsdk.UserResponse) domain.UserProfile {
	return domain.UserProfile{
		ID:                     string(u.ID),
		Email:                  domain.NormalizeEmail(u.Email),
		FullName:               u.FullName,
		IsActive:               u.IsActive,
		IsEmailVerified:        u.IsEmailVerified,
		EmailMFAEnabled:        u.EmailMFAEnabled,
		BiometricMFAEnabled:    u.BiometricMFAEnabled,
		TOTPEnabled:            u.TOTPEnabled,
		PasswordChangeRequired: u.PasswordChangeRequired,
	}
}

func asError(err error, target **authsdk.Error) bool {
	return errors.As(err, target)
}
