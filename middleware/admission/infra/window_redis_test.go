package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acquisitions-gateway/middleware/admission/domain"
)

func newMiniRedisStore(t *testing.T) (*RedisWindowStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisWindowStore(rdb, WithWindowPrefix("test:window")), mr
}

func TestRedisWindowStore_DeniesAfterQuotaPerRole(t *testing.T) {
	for _, policy := range domain.DefaultPolicies() {
		t.Run(string(policy.Role), func(t *testing.T) {
			s, _ := newMiniRedisStore(t)
			key := domain.NewKey(policy.Role, "10.0.0.1")

			for i := 0; i < policy.MaxRequests; i++ {
				res, err := s.Take(context.Background(), key, policy, t0.Add(time.Duration(i)*time.Second))
				require.NoError(t, err)
				require.True(t, res.Allowed, "request %d", i+1)
				assert.Equal(t, i+1, res.Count)
			}

			res, err := s.Take(context.Background(), key, policy, t0.Add(30*time.Second))
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, policy.MaxRequests, res.Count)
			assert.True(t, t0.Add(time.Minute).Equal(res.ResetAt), "reset at %s", res.ResetAt)
		})
	}
}

func TestRedisWindowStore_WindowSlides(t *testing.T) {
	s, _ := newMiniRedisStore(t)
	policy := domain.Policy{Role: domain.RoleGuest, Window: 10 * time.Second, MaxRequests: 2}
	key := domain.Key("guest:1.1.1.1")
	take := func(at time.Duration) domain.WindowResult {
		res, err := s.Take(context.Background(), key, policy, t0.Add(at))
		require.NoError(t, err)
		return res
	}

	assert.True(t, take(0).Allowed)
	assert.True(t, take(5*time.Second).Allowed)
	assert.False(t, take(9*time.Second).Allowed)

	// o hit de t0 saiu da janela; o mais antigo agora é t5
	res := take(10*time.Second + time.Millisecond)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Count)
	assert.True(t, t0.Add(15*time.Second).Equal(res.ResetAt), "reset at %s", res.ResetAt)

	assert.False(t, take(11*time.Second).Allowed)
	assert.True(t, take(15*time.Second+time.Millisecond).Allowed)
}

func TestRedisWindowStore_DeniedRequestsDoNotCount(t *testing.T) {
	s, mr := newMiniRedisStore(t)
	policy := domain.DefaultPolicies().For(domain.RoleGuest)
	key := domain.NewKey(domain.RoleGuest, "1.1.1.1")

	for i := 0; i < 7; i++ {
		res, err := s.Take(context.Background(), key, policy, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.Equal(t, i < 5, res.Allowed, "request %d", i+1)
		assert.Equal(t, min(i+1, 5), res.Count)
	}

	members, err := mr.ZMembers("test:window:" + string(key))
	require.NoError(t, err)
	assert.Len(t, members, 5)

	// t0+61s: hits de t0 e t0+1s saíram (corte inclusivo); os negados nunca entraram
	res, err := s.Take(context.Background(), key, policy, t0.Add(61*time.Second))
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Count)
}

func TestRedisWindowStore_FullWindowRestoresQuota(t *testing.T) {
	s, _ := newMiniRedisStore(t)
	policy := domain.DefaultPolicies().For(domain.RoleGuest)
	key := domain.Key("guest:1.1.1.1")

	for round := 0; round < 3; round++ {
		start := t0.Add(time.Duration(round) * 2 * time.Minute)
		for i := 0; i < policy.MaxRequests; i++ {
			res, err := s.Take(context.Background(), key, policy, start.Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
			require.True(t, res.Allowed, "round %d request %d", round, i+1)
		}
		res, err := s.Take(context.Background(), key, policy, start.Add(10*time.Second))
		require.NoError(t, err)
		require.False(t, res.Allowed, "round %d", round)
	}
}

func TestRedisWindowStore_ConcurrentTakesNeverExceedQuota(t *testing.T) {
	s, _ := newMiniRedisStore(t)
	policy := domain.DefaultPolicies().For(domain.RoleGuest)
	key := domain.Key("guest:1.1.1.1")

	var allowed atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := s.Take(context.Background(), key, policy, t0)
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(policy.MaxRequests), allowed.Load())
}

func TestRedisWindowStore_KeyExpiresWithWindow(t *testing.T) {
	s, mr := newMiniRedisStore(t)
	policy := domain.Policy{Role: domain.RoleGuest, Window: 10 * time.Second, MaxRequests: 1}

	_, err := s.Take(context.Background(), "guest:a", policy, t0)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:window:guest:a"))

	mr.FastForward(11 * time.Second)
	assert.False(t, mr.Exists("test:window:guest:a"))
}

func TestRedisWindowStore_UnreachableIsStoreUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = rdb.Close() }()

	s := NewRedisWindowStore(rdb, WithWindowPrefix("test:window:"))
	assert.Equal(t, "test:window:guest:1.1.1.1", s.redisKey("guest:1.1.1.1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := s.Take(ctx, "guest:1.1.1.1", domain.DefaultPolicies().For(domain.RoleGuest), time.Now())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
