package domain

// Credentials are held only while an MFA challenge is pending.
type Credentials struct {
	Email    string
	Password string
}

// Empty reports whether no credentials are held.
func (c Credentials) Empty() bool {
	return c.Email == "" && c.Password == ""
}

// MFAMethod identifies how the one-time code is delivered.
type MFAMethod string

const (
	MFAMethodEmail MFAMethod = "email"
	MFAMethodTOTP  MFAMethod = "totp"
)
