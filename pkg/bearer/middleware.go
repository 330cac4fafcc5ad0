package bearer

import "net/http"

// Middleware protects a handler: only successful authentication reaches
// next, with the result attached to the request context. Anonymous
// (NoResult) and failed requests both receive a challenge; anonymous ones
// get the bare scheme token since there is no failure to describe.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := h.Authenticate(r)
		if res.Outcome == OutcomeSuccess {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), res)))
			return
		}
		h.Challenge(w, r, res)
	})
}
