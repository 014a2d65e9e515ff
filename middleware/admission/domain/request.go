package domain

import "context"

// RequestInfo é a visão da requisição usada pela camada application,
// sem depender de net/http.
type RequestInfo struct {
	ClientKey string
	Method    string
	Path      string
	RawQuery  string
	UserAgent string
	// Headers contém apenas os headers relevantes para classificação
	// (chaves em forma canônica).
	Headers map[string]string
}

// Classifier reconhece requisições abusivas (bots, padrões de ataque).
// Retorna a regra que casou.
type Classifier interface {
	Match(ctx context.Context, req RequestInfo) (rule string, matched bool)
}
