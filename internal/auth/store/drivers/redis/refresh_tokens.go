// Package redis provides a refresh token repository backed by Redis, for
// deployments that want token rotation state shared across replicas while
// user records stay in SQLite.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lanternauth/lantern/internal/auth/domain"
	"github.com/lanternauth/lantern/internal/auth/store"
)

const (
	tokenKeyPrefix   = "lantern:refresh:token:"
	subjectKeyPrefix = "lantern:refresh:subject:"
)

type record struct {
	Subject   string    `json:"subject"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshTokens implements store.RefreshTokens on a Redis client.
type RefreshTokens struct {
	client *redis.Client
}

func NewRefreshTokens(client *redis.Client) *RefreshTokens {
	return &RefreshTokens{client: client}
}

// Ping verifies the Redis connection.
func (r *RefreshTokens) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func tokenKey(id string) string { return tokenKeyPrefix + id }

func subjectKey(subject string) string { return subjectKeyPrefix + subject }

func (r *RefreshTokens) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	encoded, err := json.Marshal(record{Subject: t.Subject, Token: t.Token, CreatedAt: createdAt})
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tokenKey(t.ID), encoded, 0)
		pipe.SAdd(ctx, subjectKey(t.Subject), t.ID)
		return nil
	})
	return err
}

func (r *RefreshTokens) GetRefreshTokenByID(ctx context.Context, id string) (domain.RefreshToken, error) {
	encoded, err := r.client.Get(ctx, tokenKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RefreshToken{}, store.ErrNotFound
		}
		return domain.RefreshToken{}, err
	}
	return decode(id, encoded)
}

// ConsumeRefreshToken uses GETDEL so only one of several concurrent
// redeemers sees the record. The subject index entry is cleaned up after.
func (r *RefreshTokens) ConsumeRefreshToken(ctx context.Context, id string) (domain.RefreshToken, error) {
	encoded, err := r.client.GetDel(ctx, tokenKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RefreshToken{}, store.ErrNotFound
		}
		return domain.RefreshToken{}, err
	}

	t, err := decode(id, encoded)
	if err != nil {
		return domain.RefreshToken{}, err
	}

	if err := r.client.SRem(ctx, subjectKey(t.Subject), id).Err(); err != nil {
		return domain.RefreshToken{}, err
	}
	return t, nil
}

func (r *RefreshTokens) DeleteAllForSubject(ctx context.Context, subject string) error {
	ids, err := r.client.SMembers(ctx, subjectKey(subject)).Result()
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, tokenKey(id))
		}
		pipe.Del(ctx, subjectKey(subject))
		return nil
	})
	return err
}

func decode(id string, encoded []byte) (domain.RefreshToken, error) {
	var rec record
	if err := json.Unmarshal(encoded, &rec); err != nil {
		return domain.RefreshToken{}, err
	}
	return domain.RefreshToken{ID: id, Subject: rec.Subject, Token: rec.Token, CreatedAt: rec.CreatedAt}, nil
}
