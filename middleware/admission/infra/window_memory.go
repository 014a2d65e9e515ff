package infra

import (
	"context"
	"sync"
	"time"

	"acquisitions-gateway/middleware/admission/domain"
)

// MemoryWindowStore implementa domain.WindowStore com um log de timestamps por
// chave (sliding log), protegido por um único mutex. Take é atômico.
//
// Útil para um único processo; para várias réplicas use RedisWindowStore.
type MemoryWindowStore struct {
	mu           sync.Mutex
	entries      map[domain.Key]*windowEntry
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type windowEntry struct {
	hits     []time.Time // ordem crescente
	lastSeen time.Time
}

type MemoryWindowOption func(*MemoryWindowStore)

func WithIdleTTL(d time.Duration) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.cleanupEvery = d }
}

func NewMemoryWindowStore(opts ...MemoryWindowOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		entries:      make(map[domain.Key]*windowEntry),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Take implementa domain.WindowStore.
func (s *MemoryWindowStore) Take(ctx context.Context, key domain.Key, policy domain.Policy, now time.Time) (domain.WindowResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.WindowResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		ent = &windowEntry{hits: make([]time.Time, 0, policy.MaxRequests)}
		s.entries[key] = ent
	}
	// now é lido fora do lock; um chamador atrasado não pode inserir um hit
	// anterior ao último, senão hits perde a ordem crescente
	if n := len(ent.hits); n > 0 && now.Before(ent.hits[n-1]) {
		now = ent.hits[n-1]
	}
	ent.lastSeen = now

	// descarta tudo que saiu da janela (ts <= now-window)
	cutoff := now.Add(-policy.Window)
	i := 0
	for i < len(ent.hits) && !ent.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		ent.hits = append(ent.hits[:0], ent.hits[i:]...)
	}

	if len(ent.hits) >= policy.MaxRequests {
		return domain.WindowResult{
			Allowed: false,
			Count:   len(ent.hits),
			ResetAt: ent.hits[0].Add(policy.Window),
		}, nil
	}

	ent.hits = append(ent.hits, now)
	return domain.WindowResult{
		Allowed: true,
		Count:   len(ent.hits),
		ResetAt: ent.hits[0].Add(policy.Window),
	}, nil
}

// Cleanup remove chaves sem acesso há mais de idleTTL.
func (s *MemoryWindowStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// Len retorna o número de chaves rastreadas.
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryWindowStore) StartJanitor(ctx context.Context) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}

func startJanitor(ctx context.Context, every time.Duration, fn func()) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}
