package bearer

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lanternauth/lantern/pkg/jwtx"
)

// Challenge writes the 401 response for a non-successful result. The
// Challenge hook runs first and may take over entirely; otherwise the header
// is the bare scheme token, extended with error fields when detail
// disclosure is enabled and the result carries a classified failure.
func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request, res *Result) {
	cc := &ChallengeContext{
		Request:  r,
		Response: w,
		Scheme:   h.Options.scheme(),
	}
	if res != nil && res.Outcome == OutcomeFailure {
		cc.Failure = res.Err
	}

	if h.Options.IncludeErrorDetails && cc.Failure != nil {
		cc.Error, cc.ErrorDescription = Describe(cc.Failure)
	}

	hook := h.Events.OnChallenge
	if hook == nil {
		hook = DefaultChallenge
	}
	// A failing hook must not leave the response unwritten; fall through to
	// the default challenge instead of returning an implicit 200.
	if err := hook(cc); err == nil && cc.Handled() {
		return
	}

	value := cc.Scheme
	if cc.Error != "" {
		value += fmt.Sprintf(" error=%q", cc.Error)
	}
	if cc.ErrorDescription != "" {
		value += fmt.Sprintf(" error_description=%q", cc.ErrorDescription)
	}
	if cc.ErrorURI != "" {
		value += fmt.Sprintf(" error_uri=%q", cc.ErrorURI)
	}

	w.Header().Set("WWW-Authenticate", value)
	w.WriteHeader(http.StatusUnauthorized)
}

// Describe maps a classified authentication failure to the error and
// error_description values of the challenge header. Unclassified errors
// yield the generic invalid_token code with no description.
func Describe(failure error) (code, description string) {
	switch {
	case errors.Is(failure, ErrMissingToken):
		return "missing_token", "The authorization header is required"
	case errors.Is(failure, ErrInvalidStamp):
		return "invalid_token", "The access token is no longer valid"
	case errors.Is(failure, jwtx.ErrAudience):
		return "invalid_token", "The audience is invalid"
	case errors.Is(failure, jwtx.ErrIssuer):
		return "invalid_token", "The issuer is invalid"
	case errors.Is(failure, jwtx.ErrNoExpiration):
		return "invalid_token", "The token has no expiration"
	case errors.Is(failure, jwtx.ErrNotYetValid):
		return "invalid_token", "The token is not valid yet"
	case errors.Is(failure, jwtx.ErrExpired):
		return "invalid_token", "The token is expired"
	case errors.Is(failure, jwtx.ErrKeyNotFound):
		return "invalid_token", "The signature key was not found"
	case errors.Is(failure, jwtx.ErrInvalidSig):
		return "invalid_token", "The signature is invalid"
	case errors.Is(failure, jwtx.ErrMalformed):
		return "invalid_token", "The token is malformed"
	default:
		return "invalid_token", ""
	}
}
