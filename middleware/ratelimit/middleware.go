package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"intelligent-gateway/internal/apperrors"
	"intelligent-gateway/middleware/ratelimit/application"
	"intelligent-gateway/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) string

// DecisionObserver recebe cada decisão (ex.: contador Prometheus).
type DecisionObserver interface {
	ObserveDecision(allowed bool)
}

type Options struct {
	Store domain.CounterStore
	Limit domain.Limit
	Clock domain.Clock
	Stats domain.StatsStore

	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool

	// FailOpen deixa passar quando o store falha. Padrão: responde 503.
	FailOpen            bool
	AddRateLimitHeaders bool

	Logger   *zap.Logger
	Observer DecisionObserver
}

// DefaultKeyFunc identifica o cliente pela origem: header configurado, primeiro
// IP do X-Forwarded-For (se confiável) ou o host do RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente de origem)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// ContextKeyFunc usa a identidade autenticada guardada no contexto e cai para
// fallback quando não há nenhuma.
func ContextKeyFunc(identity func(ctx context.Context) string, fallback KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		if identity != nil {
			if id := identity(r.Context()); id != "" {
				return id
			}
		}
		return fallback(r)
	}
}

// Middleware aplica a janela fixa por identidade.
// Bloqueado: 429 texto puro com Retry-After em segundos inteiros.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.Service{
		Store: opts.Store,
		Limit: opts.Limit,
		Clock: opts.Clock,
	}
	now := time.Now
	if opts.Clock != nil {
		now = opts.Clock
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key(opts.KeyFn(r))

			dec, err := svc.Admit(r.Context(), key)
			if err != nil {
				if opts.FailOpen {
					opts.Logger.Warn("rate limit store failed, admitting request",
						zap.String("identity", string(key)), zap.Error(err))
					next.ServeHTTP(w, r)
					return
				}
				opts.Logger.Error("rate limit store failed", zap.String("identity", string(key)), zap.Error(err))
				apperrors.Respond(w, r, apperrors.Wrap(apperrors.CodeServiceUnavailable, err, "rate limiter unavailable"))
				return
			}

			if opts.Observer != nil {
				opts.Observer.ObserveDecision(dec.Allowed)
			}
			if opts.Stats != nil {
				if err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     key,
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      now(),
				}); err != nil {
					opts.Logger.Debug("rate limit stats not recorded", zap.Error(err))
				}
			}

			if opts.AddRateLimitHeaders {
				h := w.Header()
				h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
				h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
				if !dec.ResetAt.IsZero() {
					h.Set("X-RateLimit-Reset", formatInt(apperrors.RetryAfterSeconds(dec.ResetAt.Sub(now()))))
				}
			}

			if !dec.Allowed {
				opts.Logger.Info("rate limited",
					zap.String("identity", string(key)),
					zap.Duration("retry_after", dec.RetryAfter))
				apperrors.Respond(w, r, apperrors.TooManyRequests(dec.RetryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
