package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gateway"

// Metrics agrupa os coletores do gateway em um registry próprio.
//
// Todos os métodos aceitam receiver nil, para que componentes possam ser usados
// sem métricas (testes, binários auxiliares).
type Metrics struct {
	registry *prometheus.Registry

	decisions     *prometheus.CounterVec
	logins        *prometheus.CounterVec
	selections    *prometheus.CounterVec
	failOpen      prometheus.Counter
	proxyDuration *prometheus.HistogramVec
	upstreamUp    *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_decisions_total",
			Help:      "Rate limit decisions by result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Token issue attempts by result.",
		}, []string{"result"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_selections_total",
			Help:      "Upstream selections by upstream.",
		}, []string{"upstream"}),
		failOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_fail_open_total",
			Help:      "Requests dispatched to an upstream currently marked unhealthy.",
		}),
		proxyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proxy_request_duration_seconds",
			Help:      "Latency of forwarded requests in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"upstream", "code"}),
		upstreamUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_healthy",
			Help:      "1 when the last health probe succeeded.",
		}, []string{"upstream"}),
	}
	reg.MustRegister(m.decisions, m.logins, m.selections, m.failOpen, m.proxyDuration, m.upstreamUp)
	return m
}

// Handler expõe o registry no formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveDecision(allowed bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if allowed {
		result = "allowed"
	}
	m.decisions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLogin(ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "issued"
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSelection(upstream string, failOpen bool) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(upstream).Inc()
	if failOpen {
		m.failOpen.Inc()
	}
}

func (m *Metrics) ObserveProxy(upstream string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.proxyDuration.WithLabelValues(upstream, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) SetUpstreamHealth(upstream string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	m.upstreamUp.WithLabelValues(upstream).Set(v)
}
