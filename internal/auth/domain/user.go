package domain

import "time"

type User struct {
	ID              string
	Username        string
	Email           string
	PreferredName   string
	ProfileImageURL string
	Phone           string
	Roles           []string // Parsed from space-delimited storage
	PasswordHash    string   // argon2 encoded
	SecurityStamp   string   // rotated on sign-out and password change
	TOTPSecret      *string  // TOTP secret (nullable, base32 encoded)
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TOTPEnabled reports whether the user has a provisioned code secret.
func (u *User) TOTPEnabled() bool {
	return u.TOTPSecret != nil && *u.TOTPSecret != ""
}
