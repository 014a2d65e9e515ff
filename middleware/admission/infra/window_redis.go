package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"acquisitions-gateway/middleware/admission/domain"
)

// slidingWindowScript faz o incremento-e-verificação num único passo atômico
// no Redis: poda o sorted set, conta e só adiciona se ainda houver cota.
//
// KEYS[1] = chave do balde
// ARGV    = now(ms), window(ms), limit, member
// Retorno = {allowed(0|1), count, resetAt(ms)}
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// RedisWindowStore implementa domain.WindowStore sobre um sorted set por chave,
// compartilhado entre réplicas do gateway.
type RedisWindowStore struct {
	rdb    redis.Scripter
	prefix string
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func NewRedisWindowStore(rdb redis.Scripter, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:    rdb,
		prefix: "admission:window",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) redisKey(key domain.Key) string {
	return s.prefix + ":" + string(key)
}

// Take implementa domain.WindowStore. Qualquer erro do Redis (inclusive
// timeout do ctx) volta embrulhado em domain.ErrStoreUnavailable.
func (s *RedisWindowStore) Take(ctx context.Context, key domain.Key, policy domain.Policy, now time.Time) (domain.WindowResult, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	vals, err := slidingWindowScript.Run(ctx, s.rdb,
		[]string{s.redisKey(key)},
		nowMs, policy.Window.Milliseconds(), policy.MaxRequests, member,
	).Int64Slice()
	if err != nil {
		return domain.WindowResult{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if len(vals) != 3 {
		return domain.WindowResult{}, fmt.Errorf("%w: unexpected script reply %v", domain.ErrStoreUnavailable, vals)
	}

	return domain.WindowResult{
		Allowed: vals[0] == 1,
		Count:   int(vals[1]),
		ResetAt: time.UnixMilli(vals[2]),
	}, nil
}
