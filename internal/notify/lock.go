package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"
)

// Locker grants non-reentrant per-job locks. TryLock never waits: ok is false
// when the lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// LocalLocker locks within the process.
type LocalLocker struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sems: make(map[string]*semaphore.Weighted)}
}

func (l *LocalLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	sem, ok := l.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[key] = sem
	}
	l.mu.Unlock()
	if !sem.TryAcquire(1) {
		return nil, false, nil
	}
	return func() { sem.Release(1) }, true, nil
}

const DefaultLockTTL = 5 * time.Minute

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker extends LocalLocker across instances sharing one Redis. The key
// expires after ttl so a crashed holder cannot block the job forever.
type RedisLocker struct {
	local  *LocalLocker
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{local: NewLocalLocker(), client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	unlockLocal, ok, _ := l.local.TryLock(ctx, key)
	if !ok {
		return nil, false, nil
	}
	rkey := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, rkey, token, l.ttl).Result()
	if err != nil {
		unlockLocal()
		return nil, false, errors.Wrapf(err, "acquire lock %s", rkey)
	}
	if !ok {
		unlockLocal()
		return nil, false, nil
	}
	return func() {
		defer unlockLocal()
		// the tick context may already be done
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.client, []string{rkey}, token).Err()
	}, true, nil
}
