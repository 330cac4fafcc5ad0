package domain

import "time"

// RefreshToken models a stored refresh token record. The record ID is the
// hex SHA-256 fingerprint of the access token it was issued alongside, and
// Token holds that access token so redemption can recover the identity from
// its claims with expiry checking off.
type RefreshToken struct {
	ID        string
	Subject   string
	Token     string
	CreatedAt time.Time
}
