package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"acquisitions-gateway/middleware/admission/domain"
)

const (
	DefaultCookieName     = "token"
	defaultResolveTimeout = 2 * time.Second
)

// Resolver extrai o principal de uma requisição.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (domain.Principal, error)
}

// ResolverFunc adapta uma função a Resolver.
type ResolverFunc func(ctx context.Context, r *http.Request) (domain.Principal, error)

func (f ResolverFunc) Resolve(ctx context.Context, r *http.Request) (domain.Principal, error) {
	return f(ctx, r)
}

// Claims são as claims aceitas no token. O id do usuário vem de "id" ou,
// na falta dele, de "sub".
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id,omitempty"`
	Role   string `json:"role,omitempty"`
	Email  string `json:"email,omitempty"`
}

// JWTResolver valida JWTs vindos do header Authorization (Bearer) ou, na
// falta dele, do cookie de sessão.
type JWTResolver struct {
	keyfunc jwt.Keyfunc
	methods []string
	issuer  string
	cookie  string
	timeout time.Duration
	log     *zap.Logger

	closeFn func()
}

type Option func(*JWTResolver)

// WithIssuer exige que a claim "iss" seja exatamente iss.
func WithIssuer(iss string) Option {
	return func(r *JWTResolver) { r.issuer = strings.TrimSpace(iss) }
}

func WithCookieName(name string) Option {
	return func(r *JWTResolver) { r.cookie = strings.TrimSpace(name) }
}

// WithResolveTimeout limita o tempo gasto validando a credencial.
func WithResolveTimeout(d time.Duration) Option {
	return func(r *JWTResolver) { r.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *JWTResolver) { r.log = l }
}

func newResolver(kf jwt.Keyfunc, methods []string, opts ...Option) *JWTResolver {
	r := &JWTResolver{
		keyfunc: kf,
		methods: methods,
		cookie:  DefaultCookieName,
		timeout: defaultResolveTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewHMACResolver valida tokens HS256/384/512 assinados com secret.
func NewHMACResolver(secret []byte, opts ...Option) (*JWTResolver, error) {
	if len(secret) == 0 {
		return nil, errors.New("identity: empty JWT secret")
	}
	kf := func(*jwt.Token) (any, error) { return secret, nil }
	return newResolver(kf, []string{"HS256", "HS384", "HS512"}, opts...), nil
}

// NewJWKSResolver valida tokens assinados por chaves publicadas num endpoint
// JWKS. As chaves são recarregadas em background até Close.
func NewJWKSResolver(jwksURL string, refresh time.Duration, opts ...Option) (*JWTResolver, error) {
	r := newResolver(nil, []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "PS256", "EdDSA"}, opts...)

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   refresh,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshRateLimit:  time.Minute,
		RefreshErrorHandler: func(err error) {
			r.log.Error("failed to refresh JWKS", zap.String("url", jwksURL), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("identity: load JWKS %s: %w", jwksURL, err)
	}
	r.keyfunc = jwks.Keyfunc
	r.closeFn = jwks.EndBackground
	return r, nil
}

// Close encerra o refresh em background do JWKS, quando houver.
func (r *JWTResolver) Close() {
	if r.closeFn != nil {
		r.closeFn()
	}
}

// Resolve implementa Resolver.
func (r *JWTResolver) Resolve(ctx context.Context, req *http.Request) (domain.Principal, error) {
	if err := ctx.Err(); err != nil {
		return domain.Guest(), fmt.Errorf("%w: %w", domain.ErrResolve, err)
	}

	raw := r.credential(req)
	if raw == "" {
		return domain.Guest(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		p   domain.Principal
		err error
	}
	// a busca de chave no JWKS pode bloquear em rede
	ch := make(chan result, 1)
	go func() {
		p, err := r.parse(raw)
		ch <- result{p, err}
	}()

	select {
	case <-ctx.Done():
		return domain.Guest(), fmt.Errorf("%w: %w", domain.ErrResolve, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			r.log.Debug("credential rejected, continuing as guest", zap.Error(res.err))
			return domain.Guest(), nil
		}
		return res.p, nil
	}
}

func (r *JWTResolver) credential(req *http.Request) string {
	if h := strings.TrimSpace(req.Header.Get("Authorization")); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if r.cookie != "" {
		if c, err := req.Cookie(r.cookie); err == nil {
			return strings.TrimSpace(c.Value)
		}
	}
	return ""
}

func (r *JWTResolver) parse(raw string) (domain.Principal, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, r.keyfunc, jwt.WithValidMethods(r.methods))
	if err != nil {
		return domain.Principal{}, err
	}
	if !tok.Valid {
		return domain.Principal{}, errors.New("token is not valid")
	}
	if r.issuer != "" && !claims.VerifyIssuer(r.issuer, true) {
		return domain.Principal{}, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return domain.Principal{}, errors.New("token has no subject")
	}

	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return domain.Principal{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return domain.Principal{ID: id, Role: role, Email: claims.Email}, nil
}
