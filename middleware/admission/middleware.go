package admission

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"acquisitions-gateway/internal/metrics"
	"acquisitions-gateway/middleware/admission/application"
	"acquisitions-gateway/middleware/admission/domain"
	"acquisitions-gateway/middleware/envelope"
	"acquisitions-gateway/middleware/identity"
)

const defaultStatsTimeout = 250 * time.Millisecond

// Headers repassados aos classificadores. Cookie e Authorization ficam de fora.
var classifiedHeaders = []string{"User-Agent", "Referer", "X-Forwarded-Host", "X-Api-Version"}

type Options struct {
	Resolver identity.Resolver
	Engine   application.Engine
	// Stats é best-effort: erro vira log de debug e nunca derruba a requisição.
	Stats        domain.StatsStore
	StatsTimeout time.Duration
	Logger       *zap.Logger

	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	AddRateLimitHeaders bool
}

type middleware struct {
	opts Options
	log  *zap.Logger
	next http.Handler
}

// Middleware aplica a admissão a todas as requisições do handler embrulhado.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Resolver == nil {
		opts.Resolver = identity.ResolverFunc(func(context.Context, *http.Request) (domain.Principal, error) {
			return domain.Guest(), nil
		})
	}
	if opts.StatsTimeout <= 0 {
		opts.StatsTimeout = defaultStatsTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return &middleware{opts: opts, log: log, next: next}
	}
}

func (m *middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	info := requestInfo(r, m.opts.KeyFn(r))

	p, dec, stage, err := m.admit(r.Context(), r, info)
	metrics.AdmissionEvaluationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		m.fault(w, r, info, stage, err)
		return
	}
	if dec.Key == "" {
		dec.Key = domain.NewKey(p.EffectiveRole(), info.ClientKey)
	}
	m.record(r, p, dec)

	if m.opts.AddRateLimitHeaders && dec.Policy.MaxRequests > 0 {
		h := w.Header()
		h.Set("X-RateLimit-Key", string(dec.Key))
		h.Set("X-RateLimit-Limit", formatInt(dec.Policy.MaxRequests))
		h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
		h.Set("X-RateLimit-Policy", formatPolicy(dec.Policy))
		if !dec.ResetAt.IsZero() {
			h.Set("X-RateLimit-Reset", formatInt(secondsUntil(dec.ResetAt, time.Now())))
		}
	}

	switch dec.Reason {
	case domain.ReasonNone:
		if !dec.Allowed {
			m.fault(w, r, info, "evaluate", fmt.Errorf("%w: denied without a reason", domain.ErrEvaluation))
			return
		}
		m.next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), p)))

	case domain.ReasonBot:
		m.log.Warn("Bot request was blocked",
			zap.String("ip", info.ClientKey),
			zap.String("userAgent", info.UserAgent),
			zap.String("path", r.URL.Path),
			zap.String("rule", dec.Rule),
		)
		envelope.Forbidden(w, envelope.MsgBot)

	case domain.ReasonShield:
		m.log.Warn("Blocked request according to Shield",
			zap.String("ip", info.ClientKey),
			zap.String("userAgent", info.UserAgent),
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.String("rule", dec.Rule),
		)
		envelope.Forbidden(w, envelope.MsgShield)

	case domain.ReasonRateLimit:
		m.log.Warn("Rate limit exceeded",
			zap.String("ip", info.ClientKey),
			zap.String("userAgent", info.UserAgent),
			zap.String("path", r.URL.Path),
			zap.String("policy", dec.Policy.Name()),
			zap.Int("count", dec.Count),
		)
		if !dec.ResetAt.IsZero() {
			w.Header().Set("Retry-After", formatInt(secondsUntil(dec.ResetAt, time.Now())))
		}
		envelope.Forbidden(w, envelope.MsgRateLimit)

	case domain.ReasonUnauthenticated, domain.ReasonForbidden:
		// motivos do guard; o motor nunca os produz
		m.fault(w, r, info, "evaluate", fmt.Errorf("%w: engine returned guard reason %s", domain.ErrEvaluation, dec.Reason))

	default:
		m.fault(w, r, info, "evaluate", fmt.Errorf("%w: unknown deny reason %d", domain.ErrEvaluation, int(dec.Reason)))
	}
}

// admit resolve o principal e avalia a decisão. Panics nessas etapas viram
// erro; panics do próximo handler não passam por aqui.
func (m *middleware) admit(ctx context.Context, r *http.Request, info domain.RequestInfo) (p domain.Principal, dec domain.Decision, stage string, err error) {
	stage = "resolve"
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic during %s: %v", domain.ErrEvaluation, stage, rec)
			stage = "panic"
		}
	}()

	p, err = m.opts.Resolver.Resolve(ctx, r)
	if err != nil {
		return p, dec, stage, fmt.Errorf("%w: %w", domain.ErrEvaluation, err)
	}

	stage = "evaluate"
	dec, err = m.opts.Engine.Evaluate(ctx, p, info)
	return p, dec, stage, err
}

func (m *middleware) fault(w http.ResponseWriter, r *http.Request, info domain.RequestInfo, stage string, err error) {
	metrics.AdmissionFaults.WithLabelValues(stage).Inc()
	m.log.Error("Admission middleware error",
		zap.Error(err),
		zap.String("stage", stage),
		zap.String("ip", info.ClientKey),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)
	envelope.Fault(w)
}

func (m *middleware) record(r *http.Request, p domain.Principal, dec domain.Decision) {
	role := p.EffectiveRole()
	outcome := "allowed"
	if !dec.Allowed {
		outcome = "denied"
	}
	metrics.AdmissionDecisions.WithLabelValues(string(role), outcome, dec.Reason.String()).Inc()

	if m.opts.Stats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), m.opts.StatsTimeout)
	defer cancel()

	err := m.opts.Stats.Record(ctx, domain.StatsEvent{
		Key:     dec.Key,
		Role:    role,
		Allowed: dec.Allowed,
		Reason:  dec.Reason,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	})
	if err != nil {
		metrics.StatsRecordErrors.Inc()
		m.log.Debug("failed to record admission stats", zap.Error(err), zap.String("key", string(dec.Key)))
	}
}

func requestInfo(r *http.Request, client string) domain.RequestInfo {
	headers := make(map[string]string, len(classifiedHeaders))
	for _, h := range classifiedHeaders {
		if v := r.Header.Get(h); v != "" {
			headers[h] = v
		}
	}
	return domain.RequestInfo{
		ClientKey: client,
		Method:    r.Method,
		Path:      r.URL.EscapedPath(),
		RawQuery:  r.URL.RawQuery,
		UserAgent: r.UserAgent(),
		Headers:   headers,
	}
}
