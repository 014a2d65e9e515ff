package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão já tomada.
//
// Cuidado com cardinalidade ao persistir Key/Path.
type StatsEvent struct {
	Key     Key
	Role    Role
	Allowed bool
	Reason  DenyReason

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste estatísticas de admissão.
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
