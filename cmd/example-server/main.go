package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"intelligent-gateway/internal/observability"
	"intelligent-gateway/middleware/ratelimit"
	"intelligent-gateway/middleware/ratelimit/infra"
)

// Upstream de demonstração: GET /hello identifica o serviço e GET /health
// falha com probabilidade HEALTH_FAILURE_RATE para exercitar o health check.
func main() {
	v := viper.New()
	v.SetDefault("service_name", "service-1")
	v.SetDefault("listen_addr", ":7001")
	v.SetDefault("health_failure_rate", 0.0)
	v.SetDefault("rate_rps", 50.0)
	v.SetDefault("rate_burst", 100)
	v.SetDefault("log_level", "info")
	v.AutomaticEnv()

	name := v.GetString("service_name")
	logger, err := observability.NewLogger(name, v.GetString("log_level"), "console")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	failureRate := v.GetFloat64("health_failure_rate")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// o mesmo throttle do gateway embutido direto no servidor, sem proxy
	store := infra.NewBucketStore(v.GetFloat64("rate_rps"), v.GetInt("rate_burst"))
	store.StartJanitor(ctx)

	r := chi.NewRouter()
	r.Use(observability.RequestID)
	r.Use(observability.AccessLog(logger))
	r.Use(ratelimit.ThrottleMiddleware(ratelimit.ThrottleOptions{
		Store:               store,
		AddRateLimitHeaders: true,
		Logger:              logger,
	}))

	r.Get("/hello", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service": name,
			"message": "Hello from " + name,
		})
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if failureRate > 0 && rand.Float64() < failureRate {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	addr := v.GetString("listen_addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example upstream listening", zap.String("addr", addr), zap.Float64("health_failure_rate", failureRate))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
