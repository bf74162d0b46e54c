package cryptox

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DevicePublicKeyPEM derives a deterministic Ed25519 key pair for a device
// fingerprint and returns the public half as a PKIX PEM block. The same
// fingerprint and secret always produce the same key, so re-registering a
// device is idempotent on the backend.
func DevicePublicKeyPEM(fingerprint string, secret []byte) (string, error) {
	if fingerprint == "" {
		return "", errors.New("cryptox: empty device fingerprint")
	}

	seed := make([]byte, ed25519.SeedSize)
	r := hkdf.New(sha256.New, secret, []byte(fingerprint), []byte("device-key"))
	if _, err := io.ReadFull(r, seed); err != nil {
		return "", fmt.Errorf("cryptox: failed to derive device seed: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	der, err := x509.MarshalPKIXPublicKey(priv.Public())
	if err != nil {
		return "", fmt.Errorf("cryptox: failed to marshal public key: %w", err)
	}

	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
