package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lanternauth/lantern/internal/auth/domain"
	"github.com/lanternauth/lantern/internal/auth/store"
	"github.com/lanternauth/lantern/internal/auth/store/drivers/sqlite"
	"github.com/lanternauth/lantern/pkg/idx"
)

// memTokens is an in-memory RefreshTokens repo standing in for the Redis
// driver, with its own Ping so the overlay's health check covers it.
type memTokens struct {
	records map[string]domain.RefreshToken
	pinged  bool
}

func newMemTokens() *memTokens {
	return &memTokens{records: make(map[string]domain.RefreshToken)}
}

func (m *memTokens) CreateRefreshToken(_ context.Context, t domain.RefreshToken) error {
	m.records[t.ID] = t
	return nil
}

func (m *memTokens) GetRefreshTokenByID(_ context.Context, id string) (domain.RefreshToken, error) {
	rec, ok := m.records[id]
	if !ok {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	return rec, nil
}

func (m *memTokens) ConsumeRefreshToken(_ context.Context, id string) (domain.RefreshToken, error) {
	rec, ok := m.records[id]
	if !ok {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	delete(m.records, id)
	return rec, nil
}

func (m *memTokens) DeleteAllForSubject(_ context.Context, subject string) error {
	for id, rec := range m.records {
		if rec.Subject == subject {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *memTokens) Ping(_ context.Context) error {
	m.pinged = true
	return nil
}

func newOverlay(t *testing.T) (store.Store, *memTokens) {
	t.Helper()
	base, err := sqlite.NewStore(filepath.Join(t.TempDir(), "lantern.db"))
	require.NoError(t, err)
	require.NoError(t, base.ApplyMigrations())
	t.Cleanup(func() { _ = base.Close() })

	tokens := newMemTokens()
	return store.WithRefreshTokens(base, tokens), tokens
}

func TestOverlayRoutesRefreshTokens(t *testing.T) {
	s, tokens := newOverlay(t)
	ctx := context.Background()

	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx,
		domain.RefreshToken{ID: "fp-1", Subject: "user-1", Token: "tok"}))

	// The record lives in the overlaid repo, not the base store.
	require.Contains(t, tokens.records, "fp-1")

	got, err := s.RefreshTokens().GetRefreshTokenByID(ctx, "fp-1")
	require.NoError(t, err)
	require.Equal(t, "tok", got.Token)

	_, err = s.RefreshTokens().ConsumeRefreshToken(ctx, "fp-1")
	require.NoError(t, err)
	_, err = s.RefreshTokens().ConsumeRefreshToken(ctx, "fp-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestOverlayTransactionsKeepRouting(t *testing.T) {
	s, tokens := newOverlay(t)
	ctx := context.Background()

	user := domain.User{
		ID:            idx.New().String(),
		Username:      "alice",
		PasswordHash:  "argon2:dummy",
		SecurityStamp: "stamp-1",
	}

	// The transaction must satisfy the full Store contract: user writes go
	// through the base transaction while refresh tokens stay overlaid.
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx,
			domain.RefreshToken{ID: "fp-tx", Subject: user.ID, Token: "tok"})
	})
	require.NoError(t, err)

	got, err := s.Users().GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)
	require.Contains(t, tokens.records, "fp-tx")
}

func TestOverlayPingCoversBothBackends(t *testing.T) {
	s, tokens := newOverlay(t)

	require.NoError(t, s.Ping(context.Background()))
	require.True(t, tokens.pinged, "overlaid repo should be health checked too")
}
