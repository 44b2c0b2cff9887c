package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

const (
	DefaultLockPrefix = "familytree:render:"
	DefaultLockTTL    = 2 * time.Minute
	defaultRetryEvery = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an
// expired holder never frees a successor's lock.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the TTL only while the key still holds our token.
var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// ArtifactLock serializes renders that share an artifact key across
// processes. A held lock is renewed every ttl/3 until unlock, so the TTL
// only bounds how long a crashed holder can block a key.
type ArtifactLock struct {
	rdb        goredis.UniversalClient
	log        *logger.Logger
	prefix     string
	ttl        time.Duration
	retryEvery time.Duration
	// renewEvery <= 0 disables renewal.
	renewEvery time.Duration
}

func NewArtifactLock(rdb goredis.UniversalClient, log *logger.Logger, ttl time.Duration) *ArtifactLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &ArtifactLock{
		rdb:        rdb,
		log:        log.With("client", "RedisArtifactLock"),
		prefix:     DefaultLockPrefix,
		ttl:        ttl,
		retryEvery: defaultRetryEvery,
		renewEvery: ttl / 3,
	}
}

// Lock polls SET NX until it owns key or ctx is done.
func (l *ArtifactLock) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("redis artifact lock not initialized")
	}
	redisKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	if l.renewEvery > 0 {
		go l.keepAlive(redisKey, token, stop)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
				l.log.Warn("redis unlock failed", "key", key, "error", err)
			}
		})
	}, nil
}

func (l *ArtifactLock) keepAlive(redisKey, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.renewEvery)
		n, err := renewScript.Run(ctx, l.rdb, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			l.log.Warn("redis lock renewal failed", "key", redisKey, "error", err)
			continue
		}
		if n == 0 {
			l.log.Warn("redis lock lost before unlock", "key", redisKey)
			return
		}
	}
}
