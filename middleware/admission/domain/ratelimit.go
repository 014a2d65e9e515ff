package domain

import (
	"context"
	"time"
)

// Key identifica um balde de janela deslizante: "<role>:<client>".
type Key string

// NewKey monta a chave do balde. Cliente vazio cai em "unknown".
func NewKey(role Role, client string) Key {
	if client == "" {
		client = "unknown"
	}
	return Key(string(role) + ":" + client)
}

// WindowResult é o estado do balde logo após o Take.
type WindowResult struct {
	Allowed bool
	// Count é o número de requisições aceitas na janela, incluindo esta quando aceita.
	Count int
	// ResetAt é quando a requisição mais antiga da janela expira.
	ResetAt time.Time
}

// WindowStore guarda os contadores de janela deslizante.
//
// Take precisa ser atômico: incrementar e verificar numa única operação,
// para que duas requisições concorrentes no mesmo balde nunca passem
// juntas da cota. Requisições negadas não são contabilizadas.
type WindowStore interface {
	Take(ctx context.Context, key Key, policy Policy, now time.Time) (WindowResult, error)
}
