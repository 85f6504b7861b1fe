// Package infra contém o health checker ativo dos upstreams.
package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"intelligent-gateway/balancer/domain"
)

// HealthObserver recebe o resultado de cada probe (ex.: gauge Prometheus).
type HealthObserver interface {
	SetUpstreamHealth(upstream string, healthy bool)
}

type HealthConfig struct {
	Path             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold int
	BreakerCooldown  time.Duration
}

func (c HealthConfig) withDefaults() HealthConfig {
	if c.Path == "" {
		c.Path = "/health"
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 15 * time.Second
	}
	return c
}

// HealthChecker faz GET <upstream><Path> em todos os endpoints a cada Interval.
//
// 200 marca saudável e zera as falhas. Qualquer outra resposta ou erro marca
// não saudável; ao atingir FailureThreshold falhas seguidas o breaker abre e
// o endpoint não é sondado durante BreakerCooldown.
type HealthChecker struct {
	cfg      HealthConfig
	registry func() *domain.Registry
	client   *http.Client
	logger   *zap.Logger
	observer HealthObserver
	now      func() time.Time
}

type HealthOption func(*HealthChecker)

func WithHTTPClient(c *http.Client) HealthOption {
	return func(h *HealthChecker) {
		if c != nil {
			h.client = c
		}
	}
}

func WithHealthLogger(l *zap.Logger) HealthOption {
	return func(h *HealthChecker) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithHealthObserver(o HealthObserver) HealthOption {
	return func(h *HealthChecker) { h.observer = o }
}

func WithHealthClock(now func() time.Time) HealthOption {
	return func(h *HealthChecker) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHealthChecker recebe uma função que devolve o registro atual, para
// acompanhar reloads sem reiniciar o checker.
func NewHealthChecker(registry func() *domain.Registry, cfg HealthConfig, opts ...HealthOption) *HealthChecker {
	h := &HealthChecker{
		cfg:      cfg.withDefaults(),
		registry: registry,
		client:   &http.Client{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run roda uma rodada imediatamente e depois a cada Interval, até o ctx encerrar.
func (h *HealthChecker) Run(ctx context.Context) {
	t := time.NewTicker(h.cfg.Interval)
	defer t.Stop()

	for {
		h.CheckOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// CheckOnce sonda todos os endpoints em paralelo e espera terminarem.
func (h *HealthChecker) CheckOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, ep := range h.registry().Endpoints() {
		wg.Add(1)
		go func(ep *domain.Endpoint) {
			defer wg.Done()
			h.check(ctx, ep)
		}(ep)
	}
	wg.Wait()
}

func (h *HealthChecker) check(ctx context.Context, ep *domain.Endpoint) {
	now := h.now()
	if ep.BreakerOpen(now) {
		return
	}

	wasHealthy := ep.Healthy()
	start := time.Now()
	err := h.probe(ctx, ep)
	if err == nil {
		ep.RecordSuccess(time.Since(start))
		if !wasHealthy {
			h.logger.Info("upstream recovered", zap.String("upstream", ep.String()))
		}
		h.observe(ep, true)
		return
	}
	if ctx.Err() != nil {
		// desligando; não conta como falha do upstream
		return
	}

	failures := ep.RecordFailure()
	fields := []zap.Field{
		zap.String("upstream", ep.String()),
		zap.Int64("failures", failures),
		zap.Error(err),
	}
	if failures >= int64(h.cfg.FailureThreshold) {
		ep.OpenBreaker(now.Add(h.cfg.BreakerCooldown))
		h.logger.Warn("upstream circuit open", append(fields, zap.Duration("cooldown", h.cfg.BreakerCooldown))...)
	} else {
		h.logger.Warn("upstream health check failed", fields...)
	}
	h.observe(ep, false)
}

func (h *HealthChecker) probe(ctx context.Context, ep *domain.Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	target := ep.URL().JoinPath(h.cfg.Path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}

func (h *HealthChecker) observe(ep *domain.Endpoint, healthy bool) {
	if h.observer != nil {
		h.observer.SetUpstreamHealth(ep.String(), healthy)
	}
}
