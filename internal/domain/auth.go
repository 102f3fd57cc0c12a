package domain

import "time"

// Account holds the credentials managed by the authentication provider.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated caller of a request. Profile is nil until
// the account's profile has been provisioned.
type Principal struct {
	ID      string
	TokenID string
	Profile *Profile
}

// HasProfile reports whether the principal resolved to a profile.
func (p *Principal) HasProfile() bool {
	return p != nil && p.Profile != nil
}

// IsAdmin reports the admin flag of the resolved profile.
func (p *Principal) IsAdmin() bool {
	return p.HasProfile() && p.Profile.IsAdmin
}

// IsITStaff reports whether the resolved profile is IT-designated.
func (p *Principal) IsITStaff() bool {
	return p.HasProfile() && p.Profile.IsITStaff()
}

// IsStaff reports admin or IT rights.
func (p *Principal) IsStaff() bool {
	return p.IsAdmin() || p.IsITStaff()
}

// PasswordResetToken is a single-use credential for setting a new password.
type PasswordResetToken struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
