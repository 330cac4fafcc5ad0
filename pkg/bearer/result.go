package bearer

import (
	"errors"

	"github.com/lanternauth/lantern/pkg/jwtx"
)

var (
	// ErrMissingToken reports a request with no Authorization header at all.
	ErrMissingToken = errors.New("bearer: the authorization header is required")

	// ErrInvalidStamp reports a token whose embedded security stamp no longer
	// matches the identity store, i.e. the token has been revoked.
	ErrInvalidStamp = errors.New("bearer: the access token is no longer valid")

	// ErrUnknownSubject is returned by an IdentityStore when the token's
	// subject does not exist.
	ErrUnknownSubject = errors.New("bearer: unknown subject")
)

// Outcome is the terminal state of the authentication pipeline for a request.
type Outcome int

const (
	// OutcomeNone means no bearer credential was presented; the request
	// proceeds as anonymous rather than being rejected.
	OutcomeNone Outcome = iota

	// OutcomeSuccess means the token verified and the identity is trusted.
	OutcomeSuccess

	// OutcomeFailure means a credential was presented and rejected.
	OutcomeFailure
)

// Result is what the pipeline hands back for a request. Exactly one of the
// three outcomes applies; Claims is set on success, Err on failure, and
// Token carries the raw bearer token on success when SaveToken is enabled.
type Result struct {
	Outcome Outcome
	Claims  *jwtx.Claims
	Token   string
	Err     error
}

// Success builds a successful result carrying the authenticated claims.
func Success(claims *jwtx.Claims) *Result {
	return &Result{Outcome: OutcomeSuccess, Claims: claims}
}

// NoResult builds the anonymous fall-through result.
func NoResult() *Result {
	return &Result{Outcome: OutcomeNone}
}

// Fail builds a failed result carrying the classified error.
func Fail(err error) *Result {
	return &Result{Outcome: OutcomeFailure, Err: err}
}
