// Package server monta o router HTTP do gateway e o ciclo de vida do http.Server.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	balancerapp "intelligent-gateway/balancer/application"
	balancerdomain "intelligent-gateway/balancer/domain"
	"intelligent-gateway/internal/apperrors"
	"intelligent-gateway/internal/config"
	"intelligent-gateway/internal/observability"
	"intelligent-gateway/middleware/auth"
	authdomain "intelligent-gateway/middleware/auth/domain"
	"intelligent-gateway/middleware/ratelimit"
	ratelimitdomain "intelligent-gateway/middleware/ratelimit/domain"
	ratelimitinfra "intelligent-gateway/middleware/ratelimit/infra"
	"intelligent-gateway/proxy"
)

// Deps reúne os componentes já construídos pelo binário.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	Issuer   authdomain.Issuer
	Verifier authdomain.Verifier
	Balancer *balancerapp.Balancer

	Counters     ratelimitdomain.CounterStore
	Stats        ratelimitdomain.StatsStore
	LoginLimiter ratelimitdomain.LimiterStore
	Clock        ratelimitdomain.Clock

	// Transport do proxy; nil usa o padrão.
	Transport http.RoundTripper
}

// NewRouter registra:
//
//	POST /login            emissão de token (throttle por origem)
//	GET  /admin/status     estado dos upstreams (apenas admin_subject)
//	GET  /healthz          liveness do próprio gateway
//	GET  /metrics          Prometheus
//	*    <prefix>/*        auth -> rate limit -> seleção + proxy
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(observability.RequestID)
	r.Use(observability.AccessLog(logger))
	r.Use(observability.Recovery(logger))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.Respond(w, req, apperrors.New(apperrors.CodeNotFound, "The requested resource was not found"))
	})

	originKey := ratelimit.DefaultKeyFunc("", cfg.TrustXFF)
	authenticate := auth.Middleware(auth.Options{Verifier: d.Verifier, Logger: logger})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.With(ratelimit.ThrottleMiddleware(ratelimit.ThrottleOptions{
		Store:  d.LoginLimiter,
		KeyFn:  originKey,
		Logger: logger,
	})).Post("/login", auth.LoginHandler(d.Issuer, d.Metrics, logger))

	r.With(authenticate, auth.RequireSubject(cfg.AdminSubject)).
		Get("/admin/status", adminStatus(d, logger))

	pipeline := proxy.Pipeline(
		authenticate,
		ratelimit.Middleware(ratelimit.Options{
			Store:               d.Counters,
			Limit:               ratelimitdomain.Limit{Max: cfg.RateLimitMax, Window: cfg.RateLimitWindow},
			Clock:               d.Clock,
			Stats:               d.Stats,
			KeyFn:               ratelimit.ContextKeyFunc(auth.IdentityFrom, originKey),
			FailOpen:            cfg.RateLimitFailOpen,
			AddRateLimitHeaders: cfg.AddRateLimitHeaders,
			Logger:              logger,
			Observer:            d.Metrics,
		}),
		proxy.Forward(proxy.Options{
			Balancer:    d.Balancer,
			MountPrefix: cfg.MountPrefix,
			Timeout:     cfg.UpstreamTimeout,
			Transport:   d.Transport,
			Logger:      logger,
			Observer:    d.Metrics,
		}),
	)
	proxied := ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		AcquireTimeout: cfg.ConcurrencyTimeout,
		Logger:         logger,
	})(pipeline)

	if cfg.MountPrefix != "" {
		r.Handle(cfg.MountPrefix, proxied)
	}
	r.Handle(cfg.MountPrefix+"/*", proxied)

	return r
}

type statusResponse struct {
	Status    string                           `json:"status"`
	Policy    balancerdomain.Policy            `json:"policy"`
	Data      map[string]balancerdomain.Status `json:"data"`
	RateLimit *ratelimitdomain.Totals          `json:"rate_limit,omitempty"`
	Windows   []windowStatus                   `json:"windows,omitempty"`
}

type windowStatus struct {
	Identity   string `json:"identity"`
	Count      int    `json:"count"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// windowLister é satisfeito pelo store em memória; no Redis use o inspect.
type windowLister interface {
	Snapshot(now time.Time) []ratelimitinfra.WindowState
}

func adminStatus(d Deps, logger *zap.Logger) http.HandlerFunc {
	now := time.Now
	if d.Clock != nil {
		now = d.Clock
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Status: "ok",
			Policy: d.Balancer.Policy(),
			Data:   d.Balancer.Registry().Status(),
		}
		if lister, ok := d.Counters.(windowLister); ok {
			states := lister.Snapshot(now())
			sort.Slice(states, func(i, j int) bool { return states[i].Key < states[j].Key })
			for _, s := range states {
				resp.Windows = append(resp.Windows, windowStatus{
					Identity:   string(s.Key),
					Count:      s.Count,
					TTLSeconds: int64(ratelimitdomain.CeilSeconds(s.TTL) / time.Second),
				})
			}
		}
		if reader, ok := d.Stats.(ratelimitdomain.StatsReader); ok {
			totals, err := reader.Totals(r.Context())
			if err != nil {
				logger.Warn("rate limit totals unavailable", zap.Error(err))
			} else {
				resp.RateLimit = &totals
			}
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server encapsula o http.Server com os timeouts do gateway.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func New(addr string, h http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       90 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Addr() string { return s.srv.Addr }

// ListenAndServe bloqueia até o servidor parar; http.ErrServerClosed não é erro.
func (s *Server) ListenAndServe() error {
	s.logger.Info("gateway listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gateway")
	return s.srv.Shutdown(ctx)
}
