package jwtx

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/go-jose/go-jose/v4/jwt"
)

// DefaultTokenLifetimeMinutes is the access-token lifetime applied when the
// host does not configure one.
const DefaultTokenLifetimeMinutes = 1560

// WildcardAudience is the audience stamped into every issued token. Tokens
// are consumed by the issuing service only, so the audience carries no
// routing information.
const WildcardAudience = "*"

// Claims are the access-token claims. The registered set comes from go-jose;
// the custom fields describe the authenticated user plus the security stamp
// used for revocation.
type Claims struct {
	jwt.Claims

	// Username the subject logs in with.
	Username string `json:"username,omitempty"`

	Email string `json:"email,omitempty"`

	// Name is the display name, when the user has one.
	Name string `json:"name,omitempty"`

	// Picture is a profile-image URL.
	Picture string `json:"picture,omitempty"`

	Phone string `json:"phone_number,omitempty"`

	Roles []string `json:"roles,omitempty"`

	// Stamp is the per-user security stamp embedded at issue time. A token is
	// only honored while this matches the identity store's current value, so
	// rotating the stamp revokes every outstanding token for the subject.
	Stamp string `json:"stamp,omitempty"`
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
