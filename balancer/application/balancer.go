// Package application contém o caso de uso de seleção de upstream: escolhe pela
// política configurada e cuida do par incremento/decremento de conexões.
package application

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"intelligent-gateway/balancer/domain"
)

// SelectionObserver recebe cada seleção (ex.: métricas). failOpen indica que
// nenhum upstream estava saudável e o escolhido foi usado mesmo assim.
type SelectionObserver interface {
	ObserveSelection(upstream string, failOpen bool)
}

type resetter interface {
	Reset()
}

// Balancer é seguro para uso concorrente. O registro pode ser trocado em
// tempo de execução com Reload.
type Balancer struct {
	policy   domain.Policy
	selector domain.Selector
	registry atomic.Pointer[domain.Registry]

	logger   *zap.Logger
	observer SelectionObserver
}

type Option func(*Balancer)

func WithLogger(l *zap.Logger) Option {
	return func(b *Balancer) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithObserver(o SelectionObserver) Option {
	return func(b *Balancer) { b.observer = o }
}

func New(policy domain.Policy, healthyOnly bool, reg *domain.Registry, opts ...Option) (*Balancer, error) {
	sel, err := NewSelector(policy, healthyOnly)
	if err != nil {
		return nil, err
	}
	b := &Balancer{policy: policy, selector: sel, logger: zap.NewNop()}
	b.registry.Store(reg)
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Balancer) Policy() domain.Policy { return b.policy }

func (b *Balancer) Registry() *domain.Registry { return b.registry.Load() }

// Reload troca o registro e zera o cursor do round robin.
func (b *Balancer) Reload(reg *domain.Registry) {
	b.registry.Store(reg)
	if r, ok := b.selector.(resetter); ok {
		r.Reset()
	}
	b.logger.Info("upstream registry reloaded", zap.Int("upstreams", reg.Len()))
}

// Select escolhe um endpoint e incrementa suas conexões ativas.
//
// O release devolvido decrementa o contador e deve ser chamado quando a
// chamada encaminhada terminar (sucesso, falha, timeout ou cancelamento).
// Chamadas extras ao release são ignoradas.
func (b *Balancer) Select() (*domain.Endpoint, func(), error) {
	reg := b.registry.Load()
	ep, err := b.selector.Pick(reg)
	if err != nil {
		return nil, nil, err
	}

	// round robin puro passa por endpoints doentes com outros saudáveis; só é
	// fail-open quando não sobrou nenhum saudável
	failOpen := !ep.Healthy() && len(reg.Healthy()) == 0
	if failOpen {
		b.logger.Warn("all upstreams unhealthy, failing open",
			zap.String("upstream", ep.String()),
			zap.String("policy", string(b.policy)))
	}
	if b.observer != nil {
		b.observer.ObserveSelection(ep.String(), failOpen)
	}

	ep.Acquire()
	var once sync.Once
	return ep, func() { once.Do(ep.Release) }, nil
}
