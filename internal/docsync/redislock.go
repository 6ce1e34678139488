package docsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lease only when the stored token matches the
// caller's. Check and delete must be one atomic step on the server; a GET
// followed by a DEL could still delete a lease that changed hands between
// the two commands.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a Redis-backed Locker using SET NX with a TTL, for
// deployments where several doccached replicas sync against a shared
// cache. Acquisition errors are reported to the caller, who treats them
// as "slot busy" rather than failing the request.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker creates a RedisLocker with the given lease TTL.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger.Named("synclock")}
}

func (l *RedisLocker) lockKey(key string) string {
	return fmt.Sprintf("doccached:sync:lease:%s", key)
}

// Acquire implements Locker via SETNX. The stored value is the acquisition
// token, so Release can verify ownership.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, l.lockKey(key), token, l.ttl).Result()
	if err != nil {
		l.logger.Warn("failed to acquire sync lease",
			zap.String("namespace", key),
			zap.Error(err),
		)
		return "", false, err
	}
	if !acquired {
		return "", false, nil
	}
	return token, true, nil
}

// Release implements Locker with an atomic check-and-delete, so a holder
// whose lease expired cannot delete a successor's lease.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.lockKey(key)}, token).Err(); err != nil {
		l.logger.Warn("failed to release sync lease",
			zap.String("namespace", key),
			zap.Error(err),
		)
		return err
	}
	return nil
}
