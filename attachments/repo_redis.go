package attachments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "sso:attach:"
	maxUpdateRetries = 16
)

var _ Repo = (*RedisRepo)(nil)

// RedisRepo keeps one JSON encoded record per SessionId. Attach uses SETNX so
// concurrent attaches for the same SessionId create a single record.
// Mutations are optimistic transactions ending in SET XX, so they never
// resurrect an expired record.
type RedisRepo struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisRepo(client *redis.Client, ttl time.Duration) *RedisRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRepo{redis: client, ttl: ttl}
}

func (r *RedisRepo) key(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (r *RedisRepo) Attach(ctx context.Context, sessionID, broker string) (*Record, error) {
	if sessionID == "" || broker == "" {
		return nil, errors.New("[attachments RedisRepo] sessionID and broker are required")
	}

	now := time.Now().UTC()
	rec := Record{
		SessionID:  sessionID,
		Broker:     broker,
		State:      StateAnonymous,
		AttachedAt: now,
		UpdatedAt:  now,
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("[attachments RedisRepo] failed to encode record: %w", err)
	}

	created, err := r.redis.SetNX(ctx, r.key(sessionID), encoded, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("[attachments RedisRepo] attach failed: %w", err)
	}
	if created {
		return &rec, nil
	}

	if err := r.redis.Expire(ctx, r.key(sessionID), r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("[attachments RedisRepo] refresh failed: %w", err)
	}
	return r.Get(ctx, sessionID)
}

func (r *RedisRepo) Get(ctx context.Context, sessionID string) (*Record, error) {
	raw, err := r.redis.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ssoerrors.ErrNotAttached
	}
	if err != nil {
		return nil, fmt.Errorf("[attachments RedisRepo] get failed: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("[attachments RedisRepo] corrupt record: %w", err)
	}
	return &rec, nil
}

func (r *RedisRepo) Authenticate(ctx context.Context, sessionID, userID string) error {
	if userID == "" {
		return errors.New("[attachments RedisRepo] userID is required")
	}
	return r.update(ctx, sessionID, func(rec *Record) {
		rec.State = StateAuthenticated
		rec.UserID = userID
	})
}

func (r *RedisRepo) Logout(ctx context.Context, sessionID string) error {
	return r.update(ctx, sessionID, func(rec *Record) {
		rec.State = StateAnonymous
		rec.UserID = ""
	})
}

// update applies fn to the stored record inside WATCH/MULTI so concurrent
// mutations of the same SessionId never overwrite each other. A write that
// loses the race is retried against the new value.
func (r *RedisRepo) update(ctx context.Context, sessionID string, fn func(*Record)) error {
	key := r.key(sessionID)

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.redis.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("[attachments RedisRepo] corrupt record: %w", err)
			}
			fn(&rec)
			rec.UpdatedAt = time.Now().UTC()

			encoded, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("[attachments RedisRepo] failed to encode record: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetArgs(ctx, key, encoded, redis.SetArgs{Mode: "XX", TTL: r.ttl})
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return ssoerrors.ErrNotAttached
		}
		if err != nil {
			return fmt.Errorf("[attachments RedisRepo] update failed: %w", err)
		}
		return nil
	}
	return fmt.Errorf("[attachments RedisRepo] update of %s kept conflicting: %w", sessionID, redis.TxFailedErr)
}
