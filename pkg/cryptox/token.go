package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// fingerprintLen is the number of base64url characters kept by FingerprintToken.
const fingerprintLen = 12

// FingerprintToken returns a short, deterministic SHA-256 fingerprint of a
// token. It identifies a token in logs without revealing it.
func FingerprintToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:fingerprintLen]
}
