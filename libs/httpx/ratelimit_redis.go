package httpx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter is a fixed-window counter shared by every instance behind the
// same Redis.
type RedisCounter struct {
	rdb    redis.Scripter
	window time.Duration
}

var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func NewRedisCounter(rdb redis.Scripter, window time.Duration) *RedisCounter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisCounter{rdb: rdb, window: window}
}

func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	res, err := redisFixedWindowScript.Run(ctx, c.rdb, []string{key}, c.window.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	case string:
		// Some proxies hand Lua integers back as strings.
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", res)
	}
}
