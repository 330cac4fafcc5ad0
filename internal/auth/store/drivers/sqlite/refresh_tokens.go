package sqlite

import (
	"context"
	"time"

	"github.com/lanternauth/lantern/internal/auth/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, subject, token, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Subject, t.Token, createdAt)
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByID(ctx context.Context, id string) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.QueryRowContext(ctx,
		`SELECT id, subject, token, created_at FROM refresh_tokens WHERE id = ?`, id).
		Scan(&t.ID, &t.Subject, &t.Token, &t.CreatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

// ConsumeRefreshToken deletes the record and returns it. Only one caller can
// win the delete, which is what enforces single use when the same token is
// redeemed concurrently.
func (r *refreshTokensRepo) ConsumeRefreshToken(ctx context.Context, id string) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM refresh_tokens WHERE id = ? RETURNING id, subject, token, created_at`, id).
		Scan(&t.ID, &t.Subject, &t.Token, &t.CreatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *refreshTokensRepo) DeleteAllForSubject(ctx context.Context, subject string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE subject = ?`, subject)
	return err
}
