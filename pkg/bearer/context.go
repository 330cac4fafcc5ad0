package bearer

import (
	"context"

	"github.com/lanternauth/lantern/pkg/jwtx"
)

type ctxKey struct{}

// NewContext attaches a successful result to the request context.
func NewContext(ctx context.Context, res *Result) context.Context {
	return context.WithValue(ctx, ctxKey{}, res)
}

// FromContext returns the authenticated result, if any.
func FromContext(ctx context.Context) (*Result, bool) {
	res, ok := ctx.Value(ctxKey{}).(*Result)
	return res, ok
}

// ClaimsFromContext returns the authenticated claims, if any.
func ClaimsFromContext(ctx context.Context) (*jwtx.Claims, bool) {
	res, ok := FromContext(ctx)
	if !ok || res.Claims == nil {
		return nil, false
	}
	return res.Claims, true
}

// SubjectFromContext returns the authenticated subject id.
func SubjectFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

// TokenFromContext returns the raw bearer token saved on the result.
// Absent unless Options.SaveToken was enabled.
func TokenFromContext(ctx context.Context) (string, bool) {
	res, ok := FromContext(ctx)
	if !ok || res.Token == "" {
		return "", false
	}
	return res.Token, true
}
