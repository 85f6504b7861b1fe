package ratelimit

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"intelligent-gateway/internal/apperrors"
	"intelligent-gateway/middleware/ratelimit/application"
	"intelligent-gateway/middleware/ratelimit/domain"
)

type ThrottleOptions struct {
	Store               domain.LimiterStore
	KeyFn               KeyFunc
	TrustXForwardedFor  bool
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	Logger              *zap.Logger
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// ThrottleMiddleware protege rotas baratas de abuso (ex.: /login) com token
// bucket por origem. Independe da janela fixa das rotas proxiadas.
func ThrottleMiddleware(opts ThrottleOptions) func(next http.Handler) http.Handler {
	if opts.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc("", opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.ThrottleService{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := svc.Decide(domain.Key(key))
			if !dec.Allowed {
				opts.Logger.Info("throttled", zap.String("origin", key), zap.String("path", r.URL.Path))
				apperrors.Respond(w, r, apperrors.TooManyRequests(dec.RetryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
