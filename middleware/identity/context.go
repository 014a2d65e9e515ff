package identity

import (
	"context"

	"acquisitions-gateway/middleware/admission/domain"
)

type principalKey struct{}

// WithPrincipal anexa o principal resolvido ao contexto.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom lê o principal anexado pela admissão. ok=false quando nenhum
// middleware de admissão rodou antes.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}
