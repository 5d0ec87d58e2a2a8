package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript удаляет ключ, только если в нём лежит токен владельца.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease — взятая аренда ключа.
type Lease struct {
	key   string
	token string
	db    *redis.Client
}

// TryLock пытается взять аренду key на ttl. false без ошибки означает, что аренда занята.
func (c *Cache) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	const op = "cache.TryLock"
	token := uuid.NewString()
	ok, err := c.Db.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{key: key, token: token, db: c.Db}, true, nil
}

// Unlock освобождает аренду. Истёкшая и перехваченная другим владельцем аренда не трогается.
func (l *Lease) Unlock(ctx context.Context) error {
	const op = "cache.Unlock"
	if err := unlockScript.Run(ctx, l.db, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Acquire берёт аренду и возвращает функцию её освобождения.
func (c *Cache) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	lease, ok, err := c.TryLock(ctx, key, ttl)
	if err != nil || !ok {
		return nil, ok, err
	}
	return lease.Unlock, true, nil
}
