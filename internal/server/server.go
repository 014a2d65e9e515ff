// Package server monta a superfície HTTP do gateway: rotas públicas, admissão
// em /api/auth e /api/users, guards por rota e o 404 em envelope.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"acquisitions-gateway/internal/config"
	"acquisitions-gateway/internal/metrics"
	"acquisitions-gateway/internal/users"
	"acquisitions-gateway/middleware/admission"
	"acquisitions-gateway/middleware/admission/application"
	"acquisitions-gateway/middleware/admission/domain"
	"acquisitions-gateway/middleware/authz"
	"acquisitions-gateway/middleware/identity"
)

// Options reúne as dependências montadas pelo comando serve.
type Options struct {
	Config    *config.Config
	Logger    *zap.Logger
	Resolver  identity.Resolver
	Engine    application.Engine
	Stats     domain.StatsStore
	Directory *users.Directory
}

type Server struct {
	cfg        *config.Config
	log        *zap.Logger
	router     *chi.Mux
	server     *http.Server
	started    time.Time
	cookieName string
}

func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server: missing config")
	}
	if err := opts.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("server: admission engine: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	dir := opts.Directory
	if dir == nil {
		dir = users.NewDirectory()
	}

	s := &Server{
		cfg:        opts.Config,
		log:        log,
		router:     chi.NewRouter(),
		started:    time.Now(),
		cookieName: opts.Config.Auth.CookieName,
	}
	if s.cookieName == "" {
		s.cookieName = identity.DefaultCookieName
	}

	// RequestID → log → recuperação de panic → concorrência
	s.router.Use(RequestID)
	s.router.Use(RequestLogger(log))
	s.router.Use(chimw.Recoverer)
	s.router.Use(admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
		Max:            opts.Config.Concurrency.Max,
		AcquireTimeout: opts.Config.Concurrency.Timeout,
		Logger:         log,
	}))

	// registrados antes das sub-rotas para que elas herdem o 404 em envelope
	s.router.NotFound(s.notFound)
	s.router.MethodNotAllowed(s.notFound)

	// admissão e guards registram o mesmo "ip"
	clientKey := admission.DefaultKeyFunc(opts.Config.Admission.KeyHeader, opts.Config.Admission.TrustXFF)
	admit := admission.Middleware(admission.Options{
		Resolver:            opts.Resolver,
		Engine:              opts.Engine,
		Stats:               opts.Stats,
		Logger:              log,
		KeyFn:               clientKey,
		KeyHeader:           opts.Config.Admission.KeyHeader,
		TrustXForwardedFor:  opts.Config.Admission.TrustXFF,
		AddRateLimitHeaders: opts.Config.Admission.AddHeaders,
	})
	guards := authz.New(log, authz.WithClientIP(clientKey))

	if err := s.registerRoutes(admit, guards, users.NewHandler(dir, log)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) registerRoutes(admit func(http.Handler) http.Handler, guards *authz.Authorizer, uh *users.Handler) error {
	r := s.router

	r.Get("/", s.landing)
	r.Get("/health", s.health)
	r.Get("/api", s.apiInfo)
	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, metrics.MetricsHandler())
	}

	var authProxy http.Handler
	if s.cfg.Upstream.AuthURL != "" {
		target, err := url.Parse(s.cfg.Upstream.AuthURL)
		if err != nil {
			return fmt.Errorf("server: upstream.auth_url: %w", err)
		}
		authProxy = newAuthProxy(target, s.log)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(admit)
		if authProxy != nil {
			r.Handle("/*", authProxy)
			return
		}
		r.With(guards.RequireAuthenticated()).Get("/me", s.me)
		r.Post("/sign-out", s.signOut)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(admit)
		r.With(guards.Guard(domain.RoleAdmin)).Get("/", uh.List)
		r.With(guards.RequireAuthenticated()).Get("/{id}", uh.Get)
		r.With(guards.RequireAuthenticated()).Post("/{id}", uh.Update)
		r.With(guards.Guard(domain.RoleAdmin)).Delete("/{id}", uh.Delete)
	})
	return nil
}

// Handler expõe o router (usado nos testes).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run atende até o ctx ser cancelado e então faz o shutdown gracioso.
func (s *Server) Run(ctx context.Context) error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:              sc.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: sc.ReadHeaderTimeout,
		ReadTimeout:       sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gateway listening", zap.String("addr", sc.Addr), zap.String("auth_upstream", s.cfg.Upstream.AuthURL))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
