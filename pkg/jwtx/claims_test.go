package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/supportchat/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwtx.Claims) string {
	t.Helper()

	// The signing key is irrelevant, the client never verifies.
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return tok
}

func TestParseUnverified(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	tok := sign(t, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: "u@x.com",
		Type:  "access",
	})

	c, err := jwtx.ParseUnverified(tok)
	require.NoError(t, err)
	require.Equal(t, "42", c.Subject)
	require.Equal(t, "u@x.com", c.Email)
	require.Equal(t, "access", c.Type)
	require.True(t, exp.Equal(c.Expiry()))
	require.True(t, exp.Equal(jwtx.ExpiresAt(tok)))
}

func TestParseUnverifiedRejectsOpaqueTokens(t *testing.T) {
	for _, tok := range []string{"", "A1", "not.a.jwt"} {
		_, err := jwtx.ParseUnverified(tok)
		require.ErrorIs(t, err, jwtx.ErrMalformed, tok)
		require.True(t, jwtx.ExpiresAt(tok).IsZero())
	}
}

func TestValidateExpiryWithLeeway(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		exp     *jwt.NumericDate
		wantErr bool
	}{
		{"no exp claim", nil, false},
		{"valid", jwt.NewNumericDate(now.Add(time.Minute)), false},
		{"within leeway", jwt.NewNumericDate(now.Add(-10 * time.Second)), false},
		{"expired", jwt.NewNumericDate(now.Add(-time.Minute)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: tt.exp}}
			err := c.ValidateExpiryWithLeeway(now, 30*time.Second)
			if tt.wantErr {
				require.ErrorIs(t, err, jwtx.ErrExpired)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
