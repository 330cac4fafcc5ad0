package http

import (
	"log/slog"
	"net/http"

	"github.com/lanternauth/lantern/internal/auth/service"
	"github.com/lanternauth/lantern/pkg/bearer"
	"github.com/lanternauth/lantern/pkg/cryptox"
	"github.com/lanternauth/lantern/pkg/httpx"
	"github.com/lanternauth/lantern/pkg/slogx"
)

// LogoutHandler serves POST /v1/account/logout. It rotates the caller's
// security stamp and drops their refresh tokens, so every outstanding
// credential stops working.
type LogoutHandler struct {
	SignIn *service.SignInService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subject, ok := bearer.SubjectFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_token", "The access token is no longer valid.")
		return
	}

	log := slogx.FromContext(ctx)
	if token, ok := bearer.TokenFromContext(ctx); ok {
		// Fingerprint only; the raw token never reaches the log.
		log = log.With(slog.String("token_fp", cryptox.FingerprintToken(token)))
	}

	if err := h.SignIn.SignOut(ctx, subject); err != nil {
		log.Error("sign out failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Something went wrong.")
		return
	}
	log.Debug("logout completed", slog.String("subject", subject))

	w.WriteHeader(http.StatusNoContent)
}
