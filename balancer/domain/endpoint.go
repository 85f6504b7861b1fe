package domain

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// Endpoint é um upstream do registro.
//
// Começa saudável; quem muda a saúde é o health checker. O contador de
// conexões ativas é incrementado na seleção e decrementado pelo release.
type Endpoint struct {
	raw string
	url *url.URL

	healthy   atomic.Bool
	active    atomic.Int64
	failures  atomic.Int64
	latency   atomic.Int64 // ns do último probe com sucesso
	openUntil atomic.Int64 // unix nano; 0 = breaker fechado
}

func NewEndpoint(raw string) (*Endpoint, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("upstream %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("upstream %q: missing host", raw)
	}

	e := &Endpoint{raw: raw, url: u}
	e.healthy.Store(true)
	return e, nil
}

func (e *Endpoint) String() string { return e.raw }

// URL devolve uma cópia da URL base.
func (e *Endpoint) URL() *url.URL {
	u := *e.url
	return &u
}

func (e *Endpoint) Healthy() bool      { return e.healthy.Load() }
func (e *Endpoint) SetHealthy(ok bool) { e.healthy.Store(ok) }

func (e *Endpoint) Active() int64 { return e.active.Load() }

func (e *Endpoint) Acquire() { e.active.Add(1) }

// Release decrementa o contador sem nunca ficar negativo.
func (e *Endpoint) Release() {
	for {
		cur := e.active.Load()
		if cur <= 0 {
			return
		}
		if e.active.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

func (e *Endpoint) Failures() int64 { return e.failures.Load() }

func (e *Endpoint) Latency() time.Duration { return time.Duration(e.latency.Load()) }

// RecordSuccess marca saudável, zera falhas, fecha o breaker e guarda a latência.
func (e *Endpoint) RecordSuccess(latency time.Duration) {
	e.latency.Store(int64(latency))
	e.failures.Store(0)
	e.openUntil.Store(0)
	e.healthy.Store(true)
}

// RecordFailure marca não saudável e devolve as falhas consecutivas.
func (e *Endpoint) RecordFailure() int64 {
	e.healthy.Store(false)
	return e.failures.Add(1)
}

func (e *Endpoint) OpenBreaker(until time.Time) { e.openUntil.Store(until.UnixNano()) }

func (e *Endpoint) BreakerOpen(now time.Time) bool {
	until := e.openUntil.Load()
	return until != 0 && now.UnixNano() < until
}

// Status é a visão do endpoint no /admin/status.
type Status struct {
	Health      int   `json:"health"`
	Failures    int64 `json:"failures"`
	LatencyMS   int64 `json:"latency_ms"`
	Connections int64 `json:"connections"`
}

func (e *Endpoint) Snapshot() Status {
	s := Status{
		Failures:    e.Failures(),
		LatencyMS:   e.Latency().Milliseconds(),
		Connections: e.Active(),
	}
	if e.Healthy() {
		s.Health = 1
	}
	return s
}
