package bearer

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/lanternauth/lantern/pkg/jwtx"
)

// MessageReceivedContext is handed to the MessageReceived hook. The hook may
// set Token to source the credential from somewhere other than the
// Authorization header, or set Result to short-circuit the pipeline.
type MessageReceivedContext struct {
	Request *http.Request
	Token   string
	Result  *Result
}

// TokenValidatedContext is handed to the TokenValidated hook after the codec
// has accepted the token. Setting Result overrides the remaining pipeline
// logic, including the default security-stamp check.
type TokenValidatedContext struct {
	Request  *http.Request
	Identity IdentityStore
	Claims   *jwtx.Claims
	Token    string
	Result   *Result
}

// AuthenticationFailedContext is handed to the AuthenticationFailed hook when
// token validation errors. The hook may swap Err for a translated error, or
// set Result to suppress the failure entirely.
type AuthenticationFailedContext struct {
	Request *http.Request
	Err     error
	Result  *Result
}

// ChallengeContext is handed to the Challenge hook before the 401 response is
// written. Calling HandleResponse suppresses the default header.
type ChallengeContext struct {
	Request          *http.Request
	Response         http.ResponseWriter
	Scheme           string
	Failure          error
	Error            string
	ErrorDescription string
	ErrorURI         string

	handled bool
}

// HandleResponse marks the challenge as fully handled by the hook.
func (c *ChallengeContext) HandleResponse() { c.handled = true }

// Handled reports whether a hook took over the challenge response.
func (c *ChallengeContext) Handled() bool { return c.handled }

// Events are the pipeline's extension points. A nil hook falls back to the
// package default; a non-nil hook fully replaces it, so hooks that only want
// to add behavior should call the corresponding Default function themselves.
type Events struct {
	OnMessageReceived      func(ctx context.Context, mc *MessageReceivedContext) error
	OnTokenValidated       func(ctx context.Context, tc *TokenValidatedContext) error
	OnAuthenticationFailed func(ctx context.Context, fc *AuthenticationFailedContext) error
	OnChallenge            func(cc *ChallengeContext) error
}

// DefaultMessageReceived extracts the bearer token from the Authorization
// header. A missing header is a hard failure; a header that is present but
// not in `Bearer <token>` form (or with an empty token) yields the anonymous
// NoResult outcome instead.
func DefaultMessageReceived(_ context.Context, mc *MessageReceivedContext) error {
	authz := mc.Request.Header.Get("Authorization")
	if authz == "" {
		mc.Result = Fail(ErrMissingToken)
		return nil
	}

	var token string
	if len(authz) > len(schemePrefix) && strings.EqualFold(authz[:len(schemePrefix)], schemePrefix) {
		token = strings.TrimSpace(authz[len(schemePrefix):])
	}
	if token == "" {
		mc.Result = NoResult()
		return nil
	}

	mc.Token = token
	return nil
}

const schemePrefix = "Bearer "

// DefaultTokenValidated enforces revocation: the stamp embedded in the token
// must equal the identity store's current stamp for the subject. This is the
// only revocation mechanism; there is no token blacklist.
func DefaultTokenValidated(ctx context.Context, tc *TokenValidatedContext) error {
	stamp, err := tc.Identity.SecurityStamp(ctx, tc.Claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUnknownSubject) {
			tc.Result = Fail(ErrInvalidStamp)
			return nil
		}
		return err
	}

	if stamp != tc.Claims.Stamp {
		tc.Result = Fail(ErrInvalidStamp)
	}
	return nil
}

// DefaultAuthenticationFailed surfaces the validation error as a failure.
func DefaultAuthenticationFailed(_ context.Context, fc *AuthenticationFailedContext) error {
	fc.Result = Fail(fc.Err)
	return nil
}

// DefaultChallenge leaves the response to the challenge writer.
func DefaultChallenge(*ChallengeContext) error { return nil }
