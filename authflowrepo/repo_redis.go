package authflowrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "authflow:"

// RedisRepo stores auth flow states in Redis with a per-key TTL.
type RedisRepo struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ Repo = (*RedisRepo)(nil)

// NewRedisRepo creates a Redis backed repository. keyPrefix namespaces the keys of this service.
func NewRedisRepo(client redis.UniversalClient, keyPrefix string) *RedisRepo {
	return &RedisRepo{client: client, keyPrefix: keyPrefix + redisKeyPrefix}
}

func (r *RedisRepo) key(state string) string {
	return r.keyPrefix + state
}

func (r *RedisRepo) Upsert(ctx context.Context, authState *AuthFlowState, ttl time.Duration) error {
	if authState == nil || authState.State == "" {
		return errors.New("[authflowrepo.RedisRepo.Upsert] state cannot be empty")
	}
	data, err := json.Marshal(authState)
	if err != nil {
		return errors.Wrap(err, "[authflowrepo.RedisRepo.Upsert] marshal")
	}
	if err := r.client.Set(ctx, r.key(authState.State), data, ttl).Err(); err != nil {
		return errors.Wrap(err, "[authflowrepo.RedisRepo.Upsert] set")
	}
	return nil
}

// Consume uses GETDEL so two concurrent callbacks for the same state cannot both succeed.
func (r *RedisRepo) Consume(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, ErrNotFound
	}
	data, err := r.client.GetDel(ctx, r.key(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[authflowrepo.RedisRepo.Consume] getdel")
	}

	var authState AuthFlowState
	if err := json.Unmarshal(data, &authState); err != nil {
		return nil, errors.Wrap(err, "[authflowrepo.RedisRepo.Consume] unmarshal")
	}
	return &authState, nil
}
