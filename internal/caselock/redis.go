package caselock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "caseflow/pkg/domain"
)

// RedisLocker serializes case writers across instances with SET NX PX.
// The TTL bounds how long a crashed holder can block a case; commands finish
// well inside it or time out on their own context first.
type RedisLocker struct {
	client     redis.Cmdable
	ttl        time.Duration
	retryEvery time.Duration
}

// releaseScript deletes the lock only if this holder still owns it, so an
// expired lock reclaimed by another writer is never released from here.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryEvery: 25 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, caseID id.CaseID) (func(), error) {
	key := "caseflow:lock:" + caseID.String()
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire case lock: %w", err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
