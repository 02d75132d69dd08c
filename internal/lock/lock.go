package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
)

// RedisLocker takes short-lived named locks so only one process runs a
// scheduling cycle at a time.
type RedisLocker struct {
	rc     *redis.Client
	prefix string
}

func NewRedisLocker(rc *redis.Client) *RedisLocker {
	return &RedisLocker{rc: rc, prefix: "lock:"}
}

// release deletes the key only if it still holds our token.
var luaRelease = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// TryLock acquires key for ttl. ok is false when another holder has it.
// The returned release func is safe to call after the ttl has passed.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	k := l.prefix + key
	token := uuid.NewString()
	ok, err := l.rc.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, false, appErrors.Wrapf(err, "acquire lock %s", key)
	}
	if !ok {
		return func() {}, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = luaRelease.Run(ctx, l.rc, []string{k}, token).Err()
	}
	return release, true, nil
}
