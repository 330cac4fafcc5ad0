package store

import (
	"context"
	"errors"

	"github.com/lanternauth/lantern/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, or
// sqlite for users with redis for refresh tokens) implement this. It exposes
// sub-repositories to keep concerns tidy and testable.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back when fn returns
	// an error and committing otherwise. This is the recommended way to do
	// multi-step operations that must be atomic (e.g., refresh rotation).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing stores are still reachable.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during the password grant.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// GetUserByPhoneSuffix returns the user whose phone number ends with
	// the given digits. Used during the phone sign-in flow.
	GetUserByPhoneSuffix(ctx context.Context, suffix string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateSecurityStamp rotates the security stamp, invalidating every
	// access token minted under the previous stamp.
	UpdateSecurityStamp(ctx context.Context, userID string, stamp string) error

	// UpdateTOTPSecret sets or clears the TOTP secret for a user.
	UpdateTOTPSecret(ctx context.Context, userID string, secret *string) error

	// DeleteUser cascades to refresh_tokens (per schema).
	DeleteUser(ctx context.Context, userID string) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record. The record ID is
	// the fingerprint of the access token held in the record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByID returns the record for a refresh token id.
	GetRefreshTokenByID(ctx context.Context, id string) (domain.RefreshToken, error)

	// ConsumeRefreshToken atomically deletes the record and returns it.
	// Returns ErrNotFound when the record does not exist or was already
	// consumed, which is what makes refresh tokens single use under
	// concurrent redemption.
	ConsumeRefreshToken(ctx context.Context, id string) (domain.RefreshToken, error)

	// DeleteAllForSubject removes every refresh token issued to a subject.
	DeleteAllForSubject(ctx context.Context, subject string) error
}
