package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lanternauth/lantern/internal/auth/domain"
	"github.com/lanternauth/lantern/internal/auth/service"
	"github.com/lanternauth/lantern/pkg/httpx"
	"github.com/lanternauth/lantern/pkg/slogx"
)

// TokenHandler serves POST /v1/account/token.
// Accepts application/x-www-form-urlencoded with a grant_type of password,
// totp or refresh_token.
type TokenHandler struct {
	Identity *service.IdentityService
	SignIn   *service.SignInService

	// EchoCodes returns freshly generated phone sign in codes in the
	// response body instead of relying on SMS delivery alone. Only set in
	// development.
	EchoCodes bool
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Content-Type must be application/x-www-form-urlencoded.")
		return
	}

	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "The request body could not be parsed.")
		return
	}

	switch r.Form.Get("grant_type") {
	case "password":
		h.handlePasswordGrant(w, r)
	case "totp":
		h.handleTOTPGrant(w, r)
	case "refresh_token":
		h.handleRefreshGrant(w, r)
	default:
		httpx.WriteError(w, http.StatusBadRequest,
			"unsupported_grant_type", "The grant type is not supported.")
	}
}

func (h *TokenHandler) handlePasswordGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")
	if username == "" || password == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Both username and password are required.")
		return
	}

	user, err := h.Identity.VerifyCredentials(ctx, username, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized,
				"invalid_grant", "The credentials are invalid.")
			return
		}
		log.Error("credential verification failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Something went wrong.")
		return
	}

	payload, err := h.SignIn.SignInWithCredentials(ctx, service.ClaimsForUser(user), signInProperties(user))
	if err != nil {
		log.Error("sign in failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Something went wrong.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, payload)
}

// handleTOTPGrant covers both phases of the phone sign in flow. Phase one
// presents only a phone number and gets a one-time code sent over SMS (and
// echoed in the response when EchoCodes is set). Phase two presents the same
// number plus the code and receives the sign in payload.
func (h *TokenHandler) handleTOTPGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	phone := strings.TrimSpace(r.Form.Get("phone"))
	code := strings.TrimSpace(r.Form.Get("code"))
	if phone == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "A phone number is required.")
		return
	}

	if code == "" {
		issued, err := h.Identity.StartPhoneSignIn(ctx, phone)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				httpx.WriteError(w, http.StatusUnauthorized,
					"invalid_grant", "The credentials are invalid.")
				return
			}
			log.Error("phone sign in start failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError,
				"server_error", "Something went wrong.")
			return
		}

		body := map[string]string{}
		if h.EchoCodes {
			body["code"] = issued
		}
		httpx.WriteJSON(w, http.StatusOK, body)
		return
	}

	user, err := h.Identity.CompletePhoneSignIn(ctx, phone, code)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrInvalidCode) {
			httpx.WriteError(w, http.StatusUnauthorized,
				"invalid_grant", "The credentials are invalid.")
			return
		}
		log.Error("phone sign in failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Something went wrong.")
		return
	}

	payload, err := h.SignIn.SignInWithCredentials(ctx, service.ClaimsForUser(user), signInProperties(user))
	if err != nil {
		log.Error("sign in failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Something went wrong.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, payload)
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	refreshToken := strings.TrimSpace(r.Form.Get("refresh_token"))
	if refreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "A refresh_token is required.")
		return
	}

	payload, err := h.SignIn.SignInWithRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			httpx.WriteError(w, http.StatusUnauthorized,
				"invalid_grant", "The refresh token is no longer valid.")
			return
		}
		log.Error("refresh grant failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Something went wrong.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, payload)
}

// signInProperties carries the public profile into the token response as a
// structured property.
func signInProperties(user domain.User) map[string]string {
	profile, err := json.Marshal(map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"name":     user.PreferredName,
		"picture":  user.ProfileImageURL,
		"roles":    user.Roles,
	})
	if err != nil {
		return nil
	}
	return map[string]string{"user": string(profile)}
}
