package store

import "context"

// Pinger is implemented by repositories with their own backing connection,
// such as the Redis refresh token repo.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WithRefreshTokens overlays a separate refresh token repository on a base
// store, e.g. SQLite for users with Redis for refresh tokens. Transactions
// only cover the base store; the overlaid repo is not transactional, which
// is fine for refresh rotation because consumption is already atomic at the
// repo level.
func WithRefreshTokens(base Store, tokens RefreshTokens) Store {
	return &overlayStore{Store: base, tokens: tokens}
}

type overlayStore struct {
	Store
	tokens RefreshTokens
}

func (s *overlayStore) RefreshTokens() RefreshTokens { return s.tokens }

func (s *overlayStore) Tx(ctx context.Context) (Tx, error) {
	tx, err := s.Store.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &overlayTx{base: tx, tokens: s.tokens}, nil
}

func (s *overlayStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.Store.WithTx(ctx, func(tx Tx) error {
		return fn(&overlayTx{base: tx, tokens: s.tokens})
	})
}

func (s *overlayStore) Ping(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return err
	}
	if p, ok := s.tokens.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// overlayTx forwards to the base transaction explicitly. The base cannot be
// embedded by interface name here because the field would shadow the Tx
// method of the Store contract.
type overlayTx struct {
	base   Tx
	tokens RefreshTokens
}

func (t *overlayTx) Users() Users                 { return t.base.Users() }
func (t *overlayTx) RefreshTokens() RefreshTokens { return t.tokens }
func (t *overlayTx) ApplyMigrations() error       { return t.base.ApplyMigrations() }

func (t *overlayTx) Tx(ctx context.Context) (Tx, error) { return t.base.Tx(ctx) }

func (t *overlayTx) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return t.base.WithTx(ctx, fn)
}

func (t *overlayTx) Close() error                   { return t.base.Close() }
func (t *overlayTx) Ping(ctx context.Context) error { return t.base.Ping(ctx) }
func (t *overlayTx) Commit() error                  { return t.base.Commit() }
func (t *overlayTx) Rollback() error                { return t.base.Rollback() }
