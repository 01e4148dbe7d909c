package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// signInLimitScript is a Lua script for sliding window rate limiting
var signInLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

local resetAt = now + window
return {1, resetAt}
`)

// SignInLimiter throttles sign-in attempts per client IP so credential
// stuffing cannot hide behind the general request budget.
type SignInLimiter struct {
	client *redis.Client
}

func NewSignInLimiter(client *redis.Client) *SignInLimiter {
	return &SignInLimiter{client: client}
}

// CheckLimit reports whether another attempt is allowed for the IP.
// Redis failures deny: a sign-in gate that opens on outage is no gate.
func (l *SignInLimiter) CheckLimit(ctx context.Context, ip string, limit int, window time.Duration) (allowed bool, resetAt time.Time) {
	now := time.Now().Unix()
	key := fmt.Sprintf("signin:%s", ip)

	result, err := signInLimitScript.Run(
		ctx,
		l.client,
		[]string{key},
		now,
		int64(window.Seconds()),
		limit,
	).Int64Slice()

	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("sign-in limit check failed, denying request for safety")
		return false, time.Now().Add(window)
	}

	if len(result) != 2 {
		log.Warn().Str("ip", ip).Msg("unexpected sign-in limit result, denying request for safety")
		return false, time.Now().Add(window)
	}

	return result[0] == 1, time.Unix(result[1], 0)
}
