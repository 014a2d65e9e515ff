package server

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"acquisitions-gateway/middleware/envelope"
	"acquisitions-gateway/middleware/identity"
)

// Headers que o gateway define para o upstream de auth. Valores enviados pelo cliente são descartados.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// newAuthProxy encaminha as requisições admitidas em /api/auth/* ao serviço de auth.
func newAuthProxy(target *url.URL, log *zap.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Header.Del(HeaderUserID)
		req.Header.Del(HeaderUserRole)
		if p, ok := identity.PrincipalFrom(req.Context()); ok && p.Authenticated() {
			req.Header.Set(HeaderUserID, p.ID)
			req.Header.Set(HeaderUserRole, string(p.EffectiveRole()))
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error("proxy error",
			zap.Error(err),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
		)
		envelope.Write(w, http.StatusBadGateway, "Bad Gateway", "Authentication service unavailable")
	}
	return proxy
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p, _ := identity.PrincipalFrom(r.Context())
	envelope.JSON(w, http.StatusOK, map[string]any{
		"message": "Authenticated",
		"user": map[string]string{
			"id":    p.ID,
			"role":  string(p.EffectiveRole()),
			"email": p.Email,
		},
	})
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	if p, ok := identity.PrincipalFrom(r.Context()); ok && p.Authenticated() {
		s.log.Info("User signed out", zap.String("userId", p.ID))
	}
	envelope.JSON(w, http.StatusOK, map[string]string{"message": "User signed out successfully"})
}
