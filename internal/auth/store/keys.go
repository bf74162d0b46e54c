package store

// Record keys. Each is stored as its own row.
const (
	KeyAccessToken       = "auth.access_token"
	KeyRefreshToken      = "auth.refresh_token"
	KeyTokenType         = "auth.token_type"
	KeyExpiresAt         = "auth.expires_at"
	KeyPasswordChange    = "auth.password_change_required"
	KeyUserProfile       = "auth.user_profile"
	KeyIntentionalLogout = "auth.intentional_logout"

	KeyBiometricEnabled      = "biometric.enabled"
	KeyBiometricRefreshToken = "biometric.refresh_token"
	KeyBiometricFingerprint  = "biometric.device_fingerprint"
	KeyBiometricEmail        = "biometric.email"
)

// TokenKeys are removed together by DeleteTokenPair.
var TokenKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyTokenType,
	KeyExpiresAt,
	KeyPasswordChange,
}

// BiometricKeys are removed together by DeleteBiometricRecord.
var BiometricKeys = []string{
	KeyBiometricEnabled,
	KeyBiometricRefreshToken,
	KeyBiometricFingerprint,
	KeyBiometricEmail,
}
