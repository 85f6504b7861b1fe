package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	balancerapp "intelligent-gateway/balancer/application"
	balancerdomain "intelligent-gateway/balancer/domain"
	balancerinfra "intelligent-gateway/balancer/infra"
	"intelligent-gateway/internal/config"
	"intelligent-gateway/internal/observability"
	"intelligent-gateway/internal/server"
	authinfra "intelligent-gateway/middleware/auth/infra"
	"intelligent-gateway/middleware/ratelimit/domain"
	"intelligent-gateway/middleware/ratelimit/infra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sobe o gateway",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger, err := observability.NewLogger("gateway", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics()

	var rdb *redis.Client
	if cfg.RateLimitBackend == config.BackendRedis || cfg.RateStatsEnabled {
		rdb, err = openRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
	}

	var counters domain.CounterStore = infra.NewMemoryWindowStore()
	if cfg.RateLimitBackend == config.BackendRedis {
		counters = infra.NewRedisWindowStore(rdb, infra.WithWindowPrefix(cfg.RateLimitPrefix))
	}

	var stats domain.StatsStore = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.RateStatsTrackKeys))
	if cfg.RateStatsEnabled {
		stats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.RateStatsPrefix),
			infra.WithStatsTTL(cfg.RateStatsTTL),
			infra.WithStatsBucket(cfg.RateStatsBucket),
			infra.WithStatsTrackKeys(cfg.RateStatsTrackKeys),
		)
	}

	issuer, err := authinfra.NewJWTIssuer(cfg.JWTSecret, authinfra.WithTTL(cfg.TokenTTL))
	if err != nil {
		return err
	}

	reg, err := balancerdomain.NewRegistry(cfg.UpstreamURLs)
	if err != nil {
		return err
	}
	balancer, err := balancerapp.New(cfg.Policy(), cfg.LBHealthyOnly, reg,
		balancerapp.WithLogger(logger),
		balancerapp.WithObserver(metrics),
	)
	if err != nil {
		return err
	}

	if cfg.HealthEnabled {
		checker := balancerinfra.NewHealthChecker(balancer.Registry, balancerinfra.HealthConfig{
			Path:             cfg.HealthPath,
			Interval:         cfg.HealthInterval,
			Timeout:          cfg.HealthTimeout,
			FailureThreshold: cfg.HealthFailureThreshold,
			BreakerCooldown:  cfg.HealthBreakerCooldown,
		},
			balancerinfra.WithHealthLogger(logger),
			balancerinfra.WithHealthObserver(metrics),
		)
		go checker.Run(ctx)
	}

	loginLimiter := infra.NewBucketStore(cfg.LoginRPS, cfg.LoginBurst)
	loginLimiter.StartJanitor(ctx)

	router := server.NewRouter(server.Deps{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Issuer:       issuer,
		Verifier:     issuer,
		Balancer:     balancer,
		Counters:     counters,
		Stats:        stats,
		LoginLimiter: loginLimiter,
	})
	srv := server.New(cfg.ListenAddr, router, logger)

	go reloadOnHangup(ctx, balancer, logger)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("gateway configured",
		zap.Strings("upstreams", cfg.UpstreamURLs),
		zap.String("policy", string(cfg.Policy())),
		zap.String("mount_prefix", cfg.MountPrefix),
		zap.Int("rate_limit_max", cfg.RateLimitMax),
		zap.Duration("rate_limit_window", cfg.RateLimitWindow),
		zap.String("rate_limit_backend", cfg.RateLimitBackend),
		zap.Bool("rate_stats_enabled", cfg.RateStatsEnabled),
		zap.Int("concurrency_max", cfg.ConcurrencyMax),
	)
	if err := srv.ListenAndServe(); err != nil {
		return err
	}
	// espera as requisições em voo antes de fechar o Redis
	<-stopped
	return nil
}

// reloadOnHangup relê upstream_urls no SIGHUP. Endpoints mantidos preservam
// contadores e estado de saúde; configuração inválida mantém o registro atual.
func reloadOnHangup(ctx context.Context, b *balancerapp.Balancer, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load(cfgFile)
			if err != nil {
				logger.Error("reload: invalid config, keeping current upstreams", zap.Error(err))
				continue
			}
			reg, err := b.Registry().Rebuild(cfg.UpstreamURLs)
			if err != nil {
				logger.Error("reload: invalid upstreams, keeping current registry", zap.Error(err))
				continue
			}
			b.Reload(reg)
		}
	}
}

func openRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}
