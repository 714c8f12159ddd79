package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSlidingWindow keeps each key's request timestamps in a sorted set so
// the window is shared across processes in queued mode. The check-and-record
// runs as a Lua script, keeping it atomic under concurrent requests.
type RedisSlidingWindow struct {
	redis  *redis.Client
	prefix string
	max    int
	window time.Duration
}

func NewRedisSlidingWindow(redisClient *redis.Client, prefix string, max int, window time.Duration) *RedisSlidingWindow {
	return &RedisSlidingWindow{
		redis:  redisClient,
		prefix: prefix,
		max:    max,
		window: window,
	}
}

// KEYS[1] = zset, ARGV[1] = now (us), ARGV[2] = window (us), ARGV[3] = max
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1] - ARGV[2])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[1])
redis.call('PEXPIRE', KEYS[1], math.ceil(ARGV[2] / 1000))
return 1
`)

func (l *RedisSlidingWindow) key(clientKey string) string {
	return fmt.Sprintf("ratelimit:%s:%s", l.prefix, clientKey)
}

func (l *RedisSlidingWindow) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixMicro()
	res, err := allowScript.Run(ctx, l.redis, []string{l.key(key)},
		now, l.window.Microseconds(), l.max).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (l *RedisSlidingWindow) Remaining(ctx context.Context, key string) (int, error) {
	count, err := l.countInWindow(ctx, key)
	if err != nil {
		return 0, err
	}
	r := l.max - count
	if r < 0 {
		r = 0
	}
	return r, nil
}

func (l *RedisSlidingWindow) ResetSeconds(ctx context.Context, key string) (int, error) {
	count, err := l.countInWindow(ctx, key)
	if err != nil {
		return 0, err
	}
	if count < l.max {
		return 0, nil
	}

	oldest, err := l.redis.ZRangeWithScores(ctx, l.key(key), 0, 0).Result()
	if err != nil || len(oldest) == 0 {
		return 0, err
	}
	now := time.Now()
	ts := time.UnixMicro(int64(oldest[0].Score))
	return secondsUntil(ts, now, l.window), nil
}

func (l *RedisSlidingWindow) countInWindow(ctx context.Context, key string) (int, error) {
	now := time.Now().UnixMicro()
	cutoff := now - l.window.Microseconds()

	pipe := l.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, l.key(key), "-inf", fmt.Sprintf("%d", cutoff))
	card := pipe.ZCard(ctx, l.key(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}
