// Package guard holds the concurrency-control primitives around respond
// calls: the per-chat in-flight lock and the per-chat rate limiter.
package guard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Inflight enforces at most one in-flight respond call per persistent chat.
// The lock is a SET NX with a TTL so a crashed server cannot wedge a chat
// forever; release checks the token so an expired-and-reacquired lock is
// never deleted by the previous holder.
type Inflight struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewInflight(rdb *redis.Client, ttl time.Duration) *Inflight {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Inflight{redis: rdb, ttl: ttl}
}

// Acquire takes the chat's lock. It returns a release function on success and
// acquired=false when another respond call already holds the lock.
func (g *Inflight) Acquire(ctx context.Context, chatID int64) (release func(), acquired bool, err error) {
	key := fmt.Sprintf("coreon:inflight:%d", chatID)
	token := newToken()

	ok, err := g.redis.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("inflight setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		// Release must survive request cancellation.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(rctx, g.redis, []string{key}, token).Result()
	}
	return release, true, nil
}

func newToken() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("tok-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
