package http

import (
	"errors"
	"net/http"

	"github.com/lanternauth/lantern/internal/auth/service"
	"github.com/lanternauth/lantern/pkg/bearer"
	"github.com/lanternauth/lantern/pkg/httpx"
	"github.com/lanternauth/lantern/pkg/slogx"
)

// ChangePasswordHandler serves POST /v1/account/changePassword. A successful
// change rotates the security stamp, so the caller's current token stops
// working and they must sign in again.
type ChangePasswordHandler struct {
	Identity *service.IdentityService
}

func (h *ChangePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subject, ok := bearer.SubjectFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_token", "The access token is no longer valid.")
		return
	}

	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "The request body could not be parsed.")
		return
	}

	current := r.Form.Get("current_password")
	next := r.Form.Get("new_password")
	if current == "" || next == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Both current_password and new_password are required.")
		return
	}

	if err := h.Identity.ChangePassword(ctx, subject, current, next); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized,
				"invalid_grant", "The current password is incorrect.")
			return
		}
		slogx.FromContext(ctx).Error("password change failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Something went wrong.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
