package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lanternauth/lantern/internal/auth/service"
	"github.com/lanternauth/lantern/pkg/httpx"
	"github.com/lanternauth/lantern/pkg/slogx"
)

// RegisterHandler serves POST /v1/account/register.
type RegisterHandler struct {
	Identity *service.IdentityService
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "The request body could not be parsed.")
		return
	}

	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")
	if username == "" || password == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Both username and password are required.")
		return
	}

	user, err := h.Identity.Register(ctx, service.RegisterParams{
		Username:        username,
		Password:        password,
		Email:           r.Form.Get("email"),
		PreferredName:   r.Form.Get("name"),
		ProfileImageURL: r.Form.Get("picture"),
		Phone:           r.Form.Get("phone"),
		Roles:           httpx.ParseSpaceDelimitedFields(r.Form.Get("roles")),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			httpx.WriteError(w, http.StatusConflict,
				"username_taken", "The username is already in use.")
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusBadRequest,
				"invalid_request", "Both username and password are required.")
		default:
			slogx.FromContext(ctx).Error("registration failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError,
				"server_error", "Something went wrong.")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{
		"id":       user.ID,
		"username": user.Username,
	})
}
