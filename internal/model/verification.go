package model

import "time"

// VerificationType names the flow a verification row belongs to.
type VerificationType string

const (
	VerificationOnboarding    VerificationType = "onboarding"
	VerificationResetPassword VerificationType = "reset-password"
	VerificationChangeEmail   VerificationType = "change-email"
	VerificationTwoFA         VerificationType = "2fa"
	VerificationTwoFAVerify   VerificationType = "2fa-verify"
)

// Valid reports whether t is a known verification type.
func (t VerificationType) Valid() bool {
	switch t {
	case VerificationOnboarding, VerificationResetPassword, VerificationChangeEmail,
		VerificationTwoFA, VerificationTwoFAVerify:
		return true
	}
	return false
}

// SingleUse reports whether a row of this type is deleted once its code is accepted.
// 2FA secrets stay until the user disables two factor authentication.
func (t VerificationType) SingleUse() bool {
	return t != VerificationTwoFA
}

// Verification stores the TOTP parameters for a pending or persistent flow,
// unique per (Target, Type).
type Verification struct {
	ID        string
	Type      VerificationType
	Target    string
	Secret    string
	Algorithm string
	Digits    int
	Period    int
	CharSet   string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Expired reports whether the row is past its expiry. Rows without an expiry
// never expire.
func (v *Verification) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && !now.Before(*v.ExpiresAt)
}
