package jwtx

import "errors"

// Validation failures are classified into sentinel errors so callers can
// branch with errors.Is and the challenge writer can map them to the
// error/error_description pair of the WWW-Authenticate header.
var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrNoExpiration = errors.New("jwtx: token has no expiration")
	ErrKeyNotFound  = errors.New("jwtx: key material not found")
)
