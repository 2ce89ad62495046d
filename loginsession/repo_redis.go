package loginsession

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisRepo stores sessions in Redis; each key expires with the session's refresh window.
type RedisRepo struct {
	client    redis.UniversalClient
	keyPrefix string
	nowTime   func() time.Time
}

var _ Repo = (*RedisRepo)(nil)

type RedisOption func(*RedisRepo)

// WithRedisNowTime sets the clock the key TTL is computed against.
func WithRedisNowTime(now func() time.Time) RedisOption {
	return func(r *RedisRepo) {
		r.nowTime = now
	}
}

func NewRedisRepo(client redis.UniversalClient, keyPrefix string, opts ...RedisOption) *RedisRepo {
	r := &RedisRepo{
		client:    client,
		keyPrefix: keyPrefix + redisKeyPrefix,
		nowTime:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRepo) key(sessionID string) string {
	return r.keyPrefix + sessionID
}

func (r *RedisRepo) Upsert(ctx context.Context, session Session) error {
	if session.ID == "" {
		return errors.New("[loginsession.RedisRepo.Upsert] session id cannot be empty")
	}
	ttl := session.RefreshExpiresAt.Sub(r.nowTime())
	if ttl <= 0 {
		return errors.Errorf("[loginsession.RedisRepo.Upsert] session %s already expired", session.ID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[loginsession.RedisRepo.Upsert] marshal")
	}
	if err := r.client.Set(ctx, r.key(session.ID), data, ttl).Err(); err != nil {
		return errors.Wrap(err, "[loginsession.RedisRepo.Upsert] set")
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, sessionID string) (Session, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "[loginsession.RedisRepo.Get] get")
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, errors.Wrap(err, "[loginsession.RedisRepo.Get] unmarshal")
	}
	return session, nil
}

func (r *RedisRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return errors.Wrap(err, "[loginsession.RedisRepo.Delete] del")
	}
	return nil
}
