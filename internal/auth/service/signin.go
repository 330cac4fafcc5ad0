package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/lanternauth/lantern/internal/auth/domain"
	"github.com/lanternauth/lantern/internal/auth/store"
	"github.com/lanternauth/lantern/pkg/cryptox"
	"github.com/lanternauth/lantern/pkg/jwtx"
	"github.com/lanternauth/lantern/pkg/slogx"
)

var ErrInvalidRefresh = errors.New("invalid_refresh_token")

// SignInService mints access/refresh token pairs and handles the refresh
// rotation and sign-out flows.
type SignInService struct {
	Codec    *jwtx.Codec
	Store    store.Store
	Identity *IdentityService

	// Lifetime of issued access tokens. Zero means the default of
	// jwtx.DefaultTokenLifetimeMinutes.
	Lifetime time.Duration
}

func (s *SignInService) lifetime() time.Duration {
	if s.Lifetime > 0 {
		return s.Lifetime
	}
	return jwtx.DefaultTokenLifetimeMinutes * time.Minute
}

// ClaimsForUser builds the access token claims for a user, including the
// current security stamp.
func ClaimsForUser(u domain.User) jwtx.Claims {
	c := jwtx.Claims{
		Username: u.Username,
		Email:    u.Email,
		Name:     u.PreferredName,
		Picture:  u.ProfileImageURL,
		Phone:    u.Phone,
		Roles:    u.Roles,
		Stamp:    u.SecurityStamp,
	}
	c.Subject = u.ID
	return c
}

// SignInWithCredentials issues a fresh access token for the given claims and
// stores a refresh token record alongside it. The record is keyed by the
// fingerprint of the access token and holds the token itself, so redemption
// needs only the refresh token id. The extra map is folded into the response
// payload; values that contain a JSON object are embedded as structured JSON
// rather than strings.
func (s *SignInService) SignInWithCredentials(ctx context.Context, claims jwtx.Claims, extra map[string]string) (map[string]any, error) {
	lifetime := s.lifetime()

	accessToken, err := s.Codec.Issue(claims, time.Now().Add(lifetime))
	if err != nil {
		return nil, err
	}

	refreshID := cryptox.FingerprintToken(accessToken)
	err = s.Store.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:      refreshID,
		Subject: claims.Subject,
		Token:   accessToken,
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("token pair issued", slog.String("subject", claims.Subject))

	payload := map[string]any{
		"access_token":  accessToken,
		"token_type":    "Bearer",
		"expires_in":    int64(lifetime.Seconds()),
		"refresh_token": refreshID,
	}
	embedExtra(payload, extra)
	return payload, nil
}

// SignInWithRefreshToken redeems a refresh token by its id alone. The stored
// access token is validated with lifetime checking off to recover the claims,
// the record is consumed (single use), every other refresh token for the
// subject is dropped, and a new pair is issued under the recovered claims.
func (s *SignInService) SignInWithRefreshToken(ctx context.Context, id string) (map[string]any, error) {
	l := slogx.FromContext(ctx)

	rec, err := s.Store.RefreshTokens().GetRefreshTokenByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	claims, err := s.Codec.Validate(rec.Token, jwtx.ValidateOptions{CheckExpiry: false})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRefresh, sanitizeError(err))
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Consume decides the race when two requests redeem the same id;
		// the loser sees ErrNotFound here.
		if _, err := tx.RefreshTokens().ConsumeRefreshToken(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}
		return tx.RefreshTokens().DeleteAllForSubject(ctx, rec.Subject)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRefresh) {
			l.Info("refresh token rejected", slog.String("subject", rec.Subject))
		}
		return nil, err
	}

	return s.SignInWithCredentials(ctx, *claims, nil)
}

// SignOut rotates the subject's security stamp and removes all refresh
// tokens, invalidating every outstanding credential. Unknown subjects are a
// no-op so sign-out is idempotent.
func (s *SignInService) SignOut(ctx context.Context, subject string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().DeleteAllForSubject(ctx, subject); err != nil {
			return err
		}
		return s.Identity.withTx(tx).RotateStamp(ctx, subject)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err == nil {
		slogx.FromContext(ctx).Info("signed out", slog.String("subject", subject))
	}
	return err
}

// withTx rebinds the identity service to a transaction-scoped store.
func (s *IdentityService) withTx(tx store.Tx) *IdentityService {
	return &IdentityService{Store: tx, SMS: s.SMS, TOTPIssuer: s.TOTPIssuer}
}

// modulePrefix matches error prefixes like "jwtx: " that name internals and
// should not leak into client-facing descriptions.
var modulePrefix = regexp.MustCompile(`^(\w+: )+`)

func sanitizeError(err error) string {
	return modulePrefix.ReplaceAllString(err.Error(), "")
}

// embedExtra folds extra properties into the payload. A value carrying a
// JSON object between its first "{" and last "}" is decoded and embedded as
// structured JSON; anything else stays a plain string.
func embedExtra(payload map[string]any, extra map[string]string) {
	for k, v := range extra {
		if i, j := strings.Index(v, "{"), strings.LastIndex(v, "}"); i >= 0 && j > i {
			var obj any
			if err := json.Unmarshal([]byte(v[i:j+1]), &obj); err == nil {
				payload[k] = obj
				continue
			}
		}
		payload[k] = v
	}
}
