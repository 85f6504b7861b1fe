package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"intelligent-gateway/internal/apperrors"
	"intelligent-gateway/middleware/ratelimit/application"
	"intelligent-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
	Logger         *zap.Logger
}

// ConcurrencyMiddleware limita as requisições em voo. Sem vaga: 503.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				if errors.Is(err, r.Context().Err()) {
					// cliente desistiu enquanto esperava
					return
				}
				opts.Logger.Warn("concurrency limit reached", zap.Int("max", opts.Max))
				apperrors.Respond(w, r, apperrors.Wrap(apperrors.CodeServiceUnavailable, err, "gateway busy"))
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
