package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"academy/internal/ratelimit/models"
)

// takeScript refills and spends one token atomically. The bucket is a hash
// {tokens, ts}; ts is in milliseconds and ARGV[2] is milliseconds per token. The key expires once it would be full.
var takeScript = redis.NewScript(`
local burst = tonumber(ARGV[1])
local per_token = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = burst
  ts = now
end

local elapsed = now - ts
if elapsed > 0 then
  tokens = math.min(burst, tokens + elapsed / per_token)
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', KEYS[1], math.ceil(burst * per_token) + 1000)
return {allowed, tostring(tokens)}
`)

// Redis is the shared token bucket store used across server instances.
type Redis struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRedis(client redis.Scripter) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (s *Redis) Allow(ctx context.Context, key string, p models.Policy) (*models.Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := s.now()

	raw, err := takeScript.Run(ctx, s.client, []string{key},
		p.Burst,
		strconv.FormatFloat(p.MillisPerToken(), 'f', -1, 64),
		now.UnixMilli(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("run token bucket script: %w", err)
	}
	allowed, tokens, err := parseReply(raw)
	if err != nil {
		return nil, err
	}
	return models.BuildResult(p, tokens, allowed, now), nil
}

func parseReply(raw []any) (bool, float64, error) {
	if len(raw) != 2 {
		return false, 0, fmt.Errorf("unexpected token bucket reply length %d", len(raw))
	}
	flag, ok := raw[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected token bucket flag %T", raw[0])
	}
	text, ok := raw[1].(string)
	if !ok {
		return false, 0, fmt.Errorf("unexpected token bucket count %T", raw[1])
	}
	tokens, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return false, 0, fmt.Errorf("parse token count: %w", err)
	}
	return flag == 1, tokens, nil
}
