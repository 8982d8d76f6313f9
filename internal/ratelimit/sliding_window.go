package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlidingWindow caps job starts across the whole worker pool: at most
// `limit` starts inside any rolling `window`, enforced in Redis so every
// worker process shares one budget.
type SlidingWindow struct {
	client *redis.Client
	key    string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindow constructs the limiter.
func NewSlidingWindow(client *redis.Client, key string, limit int, window time.Duration) *SlidingWindow {
	if key == "" {
		key = "outreach:starts"
	}
	return &SlidingWindow{
		client: client,
		key:    key,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records one job start if the rolling window has room. The member must
// be unique per start attempt.
func (w *SlidingWindow) Allow(ctx context.Context, member string) (bool, error) {
	now := w.now().UnixMilli()
	res, err := windowScript.Run(ctx, w.client, []string{w.key},
		now, w.window.Milliseconds(), w.limit, fmt.Sprintf("%s:%d", member, now)).Result()
	if err != nil {
		return false, err
	}
	allowed, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected type from window script: %T", res)
	}
	return allowed == 1, nil
}

var windowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return 1
end
return 0
`)
