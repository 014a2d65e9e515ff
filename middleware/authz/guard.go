// Package authz verifica, por rota, se o principal resolvido pela admissão
// tem um dos papéis permitidos.
package authz

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"acquisitions-gateway/internal/metrics"
	"acquisitions-gateway/middleware/admission/domain"
	"acquisitions-gateway/middleware/envelope"
	"acquisitions-gateway/middleware/identity"
)

// Authorizer monta os guards de rota. Precisa rodar depois da admissão, que
// é quem anexa o principal ao contexto.
type Authorizer struct {
	log      *zap.Logger
	clientIP func(*http.Request) string
}

type Option func(*Authorizer)

// WithClientIP define como o campo "ip" dos logs é extraído. Use a mesma
// função de chave da admissão para que os dois logs concordem atrás de proxy.
func WithClientIP(fn func(*http.Request) string) Option {
	return func(a *Authorizer) {
		if fn != nil {
			a.clientIP = fn
		}
	}
}

func New(log *zap.Logger, opts ...Option) *Authorizer {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Authorizer{log: log, clientIP: remoteIP}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Guard libera apenas principais cujo papel está em roles.
// Guest fora do conjunto recebe 401; papel autenticado fora do conjunto, 403.
func (a *Authorizer) Guard(roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]struct{}, len(roles))
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
		names = append(names, string(r))
	}
	required := strings.Join(names, ",")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := a.principal(w, r)
			if !ok {
				return
			}

			role := p.EffectiveRole()
			if _, ok := allowed[role]; ok && (role == domain.RoleGuest || p.Authenticated()) {
				next.ServeHTTP(w, r)
				return
			}

			if role == domain.RoleGuest || !p.Authenticated() {
				a.unauthenticated(w, r)
				return
			}

			metrics.AuthzDenied.WithLabelValues(domain.ReasonForbidden.String()).Inc()
			a.log.Warn("Insufficient permissions",
				zap.String("ip", a.clientIP(r)),
				zap.String("userAgent", r.UserAgent()),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.String("userId", p.ID),
				zap.String("role", string(role)),
				zap.String("required", required),
			)
			envelope.Write(w, http.StatusForbidden, envelope.ErrForbidden, envelope.MsgAuthZ)
		})
	}
}

// RequireAuthenticated libera qualquer principal autenticado que não seja guest.
func (a *Authorizer) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := a.principal(w, r)
			if !ok {
				return
			}
			if !p.Authenticated() || p.EffectiveRole() == domain.RoleGuest {
				a.unauthenticated(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authorizer) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := identity.PrincipalFrom(r.Context())
	if !ok {
		// erro de composição: guard montado sem admissão antes
		a.log.Error("authorization guard reached without a resolved principal",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
		)
		envelope.Fault(w)
		return domain.Principal{}, false
	}
	return p, true
}

func (a *Authorizer) unauthenticated(w http.ResponseWriter, r *http.Request) {
	metrics.AuthzDenied.WithLabelValues(domain.ReasonUnauthenticated.String()).Inc()
	a.log.Warn("Authentication required",
		zap.String("ip", a.clientIP(r)),
		zap.String("userAgent", r.UserAgent()),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)
	w.Header().Set("WWW-Authenticate", `Bearer realm="acquisitions"`)
	envelope.Write(w, http.StatusUnauthorized, envelope.ErrUnauthorized, envelope.MsgAuthN)
}

func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
