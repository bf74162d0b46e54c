package domain

import "time"

// BiometricRecord exists only while biometric login is enabled on this
// device. BoundEmail must equal the email behind RefreshToken at every use.
type BiometricRecord struct {
	RefreshToken      string
	DeviceFingerprint string
	BoundEmail        string // lowercased
	UpdatedAt         time.Time
}

// Usable reports whether every field required for biometric login is present.
// Partial records are treated as absent.
func (r BiometricRecord) Usable() bool {
	return r.RefreshToken != "" && r.DeviceFingerprint != "" && r.BoundEmail != ""
}

// BiometryKind is the platform biometric modality.
type BiometryKind string

const (
	BiometryNone        BiometryKind = "none"
	BiometryFingerprint BiometryKind = "fingerprint"
	BiometryFace        BiometryKind = "face"
	BiometryIris        BiometryKind = "iris"
)

// Availability is the result of a capability check. It says nothing about
// whether biometric login is enabled.
type Availability struct {
	Available bool
	Kind      BiometryKind
}
