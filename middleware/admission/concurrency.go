package admission

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"acquisitions-gateway/internal/metrics"
	"acquisitions-gateway/middleware/admission/application"
	"acquisitions-gateway/middleware/admission/domain"
	"acquisitions-gateway/middleware/admission/infra"
	"acquisitions-gateway/middleware/envelope"
)

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
	// Pool substitui o semáforo padrão de tamanho Max.
	Pool   domain.SlotPool
	Logger *zap.Logger
}

// ConcurrencyMiddleware limita requisições em voo. Max <= 0 desliga o limite.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 && opts.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.Pool == nil {
		opts.Pool = infra.NewSemaphorePool(opts.Max)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				if errors.Is(err, domain.ErrSaturated) {
					metrics.ConcurrencyRejected.Inc()
					log.Warn("Server is at capacity",
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
						zap.Duration("waited", opts.AcquireTimeout),
					)
				} else {
					log.Debug("client gave up waiting for a slot", zap.Error(err))
				}
				w.Header().Set("Retry-After", "1")
				envelope.Write(w, http.StatusServiceUnavailable, envelope.ErrUnavailable, envelope.MsgAtCapacity)
				return
			}
			metrics.InFlight.Inc()
			defer func() {
				metrics.InFlight.Dec()
				release()
			}()

			next.ServeHTTP(w, r)
		})
	}
}
