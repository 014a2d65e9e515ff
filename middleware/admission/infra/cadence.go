package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CadenceTracker mantém um token bucket (x/time/rate) por cliente, com cache
// por chave e limpeza periódica. Serve para detectar clientes rápidos demais
// para serem humanos; não substitui a cota por papel.
type CadenceTracker struct {
	mu           sync.Mutex
	entries      map[string]*cadenceEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type cadenceEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type CadenceOption func(*CadenceTracker)

func WithCadenceIdleTTL(d time.Duration) CadenceOption {
	return func(c *CadenceTracker) { c.idleTTL = d }
}

func WithCadenceCleanupEvery(d time.Duration) CadenceOption {
	return func(c *CadenceTracker) { c.cleanupEvery = d }
}

func NewCadenceTracker(rps float64, burst int, opts ...CadenceOption) *CadenceTracker {
	c := &CadenceTracker{
		entries:      make(map[string]*cadenceEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      5 * time.Minute,
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CadenceTracker) RPS() float64 { return float64(c.rps) }
func (c *CadenceTracker) Burst() int   { return c.burst }

// Allow consome um token do cliente. false = cadência acima do humano.
func (c *CadenceTracker) Allow(client string) bool {
	return c.limiter(client).Allow()
}

func (c *CadenceTracker) limiter(client string) *rate.Limiter {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[client]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(c.rps, c.burst)
	c.entries[client] = &cadenceEntry{lim: lim, lastSeen: now}
	return lim
}

func (c *CadenceTracker) Cleanup() {
	cutoff := time.Now().Add(-c.idleTTL)

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, ent := range c.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(c.entries, k)
		}
	}
}

// StartJanitor limpa clientes inativos periodicamente até o ctx encerrar.
func (c *CadenceTracker) StartJanitor(ctx context.Context) {
	startJanitor(ctx, c.cleanupEvery, c.Cleanup)
}
