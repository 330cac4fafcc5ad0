package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lanternauth/lantern/internal/auth/domain"
	"github.com/lanternauth/lantern/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, username, email, preferred_name, profile_image_url,
	phone, roles, password_hash, security_stamp, totp_secret, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (r *usersRepo) GetUserByPhoneSuffix(ctx context.Context, suffix string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone LIKE '%' || ? LIMIT 1`, suffix)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PreferredName, u.ProfileImageURL,
		u.Phone, joinFields(u.Roles), u.PasswordHash, u.SecurityStamp,
		mapOptionalString(u.TOTPSecret), now, now)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return r.update(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
}

func (r *usersRepo) UpdateSecurityStamp(ctx context.Context, userID string, stamp string) error {
	return r.update(ctx,
		`UPDATE users SET security_stamp = ?, updated_at = ? WHERE id = ?`,
		stamp, time.Now().UTC(), userID)
}

func (r *usersRepo) UpdateTOTPSecret(ctx context.Context, userID string, secret *string) error {
	return r.update(ctx,
		`UPDATE users SET totp_secret = ?, updated_at = ? WHERE id = ?`,
		mapOptionalString(secret), time.Now().UTC(), userID)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	return err
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func (r *usersRepo) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u     domain.User
		roles string
		totp  sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PreferredName,
		&u.ProfileImageURL, &u.Phone, &roles, &u.PasswordHash,
		&u.SecurityStamp, &totp, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Roles = splitFields(roles)
	u.TOTPSecret = mapNullStringPtr(totp)
	return u, nil
}
