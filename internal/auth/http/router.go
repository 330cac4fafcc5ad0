// Package http wires the account endpoints: token issuance with its grant
// types, logout, registration, password changes and the health probes.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lanternauth/lantern/internal/auth/service"
	"github.com/lanternauth/lantern/internal/auth/store"
	"github.com/lanternauth/lantern/pkg/bearer"
	"github.com/lanternauth/lantern/pkg/httpx"
	"github.com/lanternauth/lantern/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	Bearer   *bearer.Handler
	Identity *service.IdentityService
	SignIn   *service.SignInService

	// EchoCodes is passed through to the token handler so development
	// deployments return phone sign in codes directly.
	EchoCodes bool
}

func NewRouter(
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccount()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAccount() {
	// POST /token - strict rate limit by IP + username (covers all grants)
	tokenHandler := &TokenHandler{Identity: r.Identity, SignIn: r.SignIn, EchoCodes: r.EchoCodes}
	r.Mux.Handle("POST /v1/account/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	// POST /register - public signup, strict rate limit by IP
	registerHandler := &RegisterHandler{Identity: r.Identity}
	r.Mux.Handle("POST /v1/account/register",
		httpx.Chain(registerHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /logout - authenticated, moderate rate limit by subject
	logoutHandler := &LogoutHandler{SignIn: r.SignIn}
	r.Mux.Handle("POST /v1/account/logout",
		httpx.Chain(logoutHandler,
			r.Bearer.Middleware,
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)

	// POST /changePassword - authenticated, strict rate limit by subject
	// since it takes a credential attempt
	changePasswordHandler := &ChangePasswordHandler{Identity: r.Identity}
	r.Mux.Handle("POST /v1/account/changePassword",
		httpx.Chain(changePasswordHandler,
			r.Bearer.Middleware,
			httpx.RateLimitBySubject(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient limits since monitors poll them
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
