// Package ratelimit bounds the rate of named mutating actions per principal
// with a true sliding window backed by Redis, shared across all process
// instances.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)

const keyPrefix = "rl:"

// Rule is a (limit, window) pair for one guarded action.
type Rule struct {
	Limit  int
	Window time.Duration
}

// ParseRule reads the "count/window" form used in configuration, e.g. "3/1m".
func ParseRule(raw string) (Rule, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "/", 2)
	if len(parts) != 2 {
		return Rule{}, fmt.Errorf("ratelimit: rule %q must be count/window", raw)
	}

	limit, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || limit <= 0 {
		return Rule{}, fmt.Errorf("ratelimit: rule %q has invalid count", raw)
	}

	window, err := time.ParseDuration(strings.TrimSpace(parts[1]))
	if err != nil || window <= 0 {
		return Rule{}, fmt.Errorf("ratelimit: rule %q has invalid window", raw)
	}

	return Rule{Limit: limit, Window: window}, nil
}

// Result reports one admission decision. RetryAfter is only meaningful when
// Allowed is false and the decision came from the counter (not an outage).
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// The script trims events older than the trailing window, counts what is
// left, and records the new event only if capacity remains. Running it
// server-side makes check-and-increment a single atomic operation, so two
// concurrent callers cannot both take the last slot.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
local count = redis.call("ZCARD", key)

if count < limit then
	redis.call("ZADD", key, now, member)
	redis.call("PEXPIRE", key, window)
	return {1, limit - count - 1, 0}
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local retry = 0
if oldest[2] then
	retry = tonumber(oldest[2]) + window - now
end
return {0, 0, retry}
`)

// Limiter answers admit/deny per (action, principal) key. On a store outage
// the default is to deny; failOpen is the explicit operational override.
type Limiter struct {
	redis    redis.UniversalClient
	failOpen bool
	log      zerolog.Logger
	now      func() time.Time
}

func New(client redis.UniversalClient, failOpen bool, log zerolog.Logger) *Limiter {
	return &Limiter{
		redis:    client,
		failOpen: failOpen,
		log:      log,
		now:      time.Now,
	}
}

// Admit records an attempt under key and reports whether it fits inside the
// rule's sliding window. Denials by the counter return a Result with
// Allowed=false and a nil error; ErrStoreUnavailable is returned only when
// the backing store could not answer and fail-open is not configured.
func (l *Limiter) Admit(ctx context.Context, key string, rule Rule) (Result, error) {
	nowMillis := l.now().UnixMilli()
	windowMillis := rule.Window.Milliseconds()
	member := fmt.Sprintf("%d-%s", nowMillis, uuid.NewString())

	raw, err := admitScript.Run(ctx, l.redis,
		[]string{keyPrefix + key},
		nowMillis, windowMillis, rule.Limit, member,
	).Result()
	if err != nil {
		if l.failOpen {
			l.log.Warn().Err(err).Str("key", key).
				Msg("rate limit store unreachable, admitting due to fail-open override")
			return Result{Allowed: true, Remaining: rule.Limit}, nil
		}
		l.log.Error().Err(err).Str("key", key).
			Msg("rate limit store unreachable, denying (fail-closed)")
		return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Result{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, raw)
	}

	allowed := asInt64(values[0]) == 1
	result := Result{
		Allowed:    allowed,
		Remaining:  int(asInt64(values[1])),
		RetryAfter: time.Duration(asInt64(values[2])) * time.Millisecond,
	}
	return result, nil
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
