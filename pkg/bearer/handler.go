// Package bearer implements the inbound bearer-token authentication pipeline:
// token extraction, codec validation, revocation-by-stamp checking, and the
// WWW-Authenticate challenge on failure. Every stage runs through a
// replaceable event hook so hosts can override behavior without forking the
// pipeline.
package bearer

import (
	"context"
	"net/http"

	"github.com/lanternauth/lantern/pkg/jwtx"
)

// IdentityStore is the slice of the host's identity system the pipeline
// needs: the current security stamp per subject.
type IdentityStore interface {
	// SecurityStamp returns the subject's current security stamp, or
	// ErrUnknownSubject when no such subject exists.
	SecurityStamp(ctx context.Context, subject string) (string, error)
}

// Handler runs the authentication pipeline. It holds no per-request state
// and is safe for concurrent use.
type Handler struct {
	Options  Options
	Codec    *jwtx.Codec
	Identity IdentityStore

	// Events customize individual stages; nil hooks use the defaults.
	Events Events
}

// Authenticate drives the four-stage pipeline for one request and returns
// its terminal result. It never writes to the response; pair it with
// Challenge (or Middleware) for that.
func (h *Handler) Authenticate(r *http.Request) *Result {
	ctx := r.Context()

	// Stage 1: MessageReceived.
	mc := &MessageReceivedContext{Request: r}
	if err := h.messageReceived(ctx, mc); err != nil {
		return Fail(err)
	}
	if mc.Result != nil {
		return mc.Result
	}

	// Stage 2: Validate.
	claims, err := h.Codec.Validate(mc.Token, jwtx.ValidateOptions{CheckExpiry: true})
	if err != nil {
		// Stage 4: AuthenticationFailed.
		fc := &AuthenticationFailedContext{Request: r, Err: err}
		if hookErr := h.authenticationFailed(ctx, fc); hookErr != nil {
			return Fail(hookErr)
		}
		if fc.Result != nil {
			return fc.Result
		}
		return Fail(fc.Err)
	}

	// Stage 3: TokenValidated.
	tc := &TokenValidatedContext{Request: r, Identity: h.Identity, Claims: claims, Token: mc.Token}
	if err := h.tokenValidated(ctx, tc); err != nil {
		return Fail(err)
	}
	if tc.Result != nil {
		return tc.Result
	}

	res := Success(tc.Claims)
	if h.Options.SaveToken {
		res.Token = tc.Token
	}
	return res
}

func (h *Handler) messageReceived(ctx context.Context, mc *MessageReceivedContext) error {
	if hook := h.Events.OnMessageReceived; hook != nil {
		return hook(ctx, mc)
	}
	return DefaultMessageReceived(ctx, mc)
}

func (h *Handler) tokenValidated(ctx context.Context, tc *TokenValidatedContext) error {
	if hook := h.Events.OnTokenValidated; hook != nil {
		return hook(ctx, tc)
	}
	return DefaultTokenValidated(ctx, tc)
}

func (h *Handler) authenticationFailed(ctx context.Context, fc *AuthenticationFailedContext) error {
	if hook := h.Events.OnAuthenticationFailed; hook != nil {
		return hook(ctx, fc)
	}
	return DefaultAuthenticationFailed(ctx, fc)
}
