package application

import (
	"sync/atomic"

	"intelligent-gateway/balancer/domain"
)

// RoundRobin percorre o registro com um cursor compartilhado.
//
// Com HealthyOnly, o cursor anda apenas sobre os endpoints saudáveis no
// momento da chamada. O cursor só volta a zero com Reset (reload).
type RoundRobin struct {
	HealthyOnly bool
	cursor      atomic.Uint64
}

func (rr *RoundRobin) Pick(reg *domain.Registry) (*domain.Endpoint, error) {
	candidates := reg.Endpoints()
	if rr.HealthyOnly {
		candidates = reg.Healthy()
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoUpstreamAvailable
	}
	n := rr.cursor.Add(1) - 1
	return candidates[n%uint64(len(candidates))], nil
}

// Cursor devolve quantas seleções já foram feitas desde o último Reset.
func (rr *RoundRobin) Cursor() uint64 { return rr.cursor.Load() }

func (rr *RoundRobin) Reset() { rr.cursor.Store(0) }

// LeastConnections escolhe, entre os saudáveis, o de menos conexões ativas;
// empate fica com o primeiro da lista.
//
// Sem nenhum saudável, devolve o primeiro endpoint do registro completo
// (fail-open). Quem chama percebe pelo Healthy() do endpoint devolvido.
type LeastConnections struct{}

func (LeastConnections) Pick(reg *domain.Registry) (*domain.Endpoint, error) {
	all := reg.Endpoints()
	if len(all) == 0 {
		return nil, domain.ErrNoUpstreamAvailable
	}

	var best *domain.Endpoint
	var bestActive int64
	for _, ep := range all {
		if !ep.Healthy() {
			continue
		}
		active := ep.Active()
		if best == nil || active < bestActive {
			best, bestActive = ep, active
		}
	}
	if best == nil {
		return all[0], nil
	}
	return best, nil
}

// NewSelector monta o Selector da política configurada.
func NewSelector(policy domain.Policy, healthyOnly bool) (domain.Selector, error) {
	switch policy {
	case domain.PolicyRoundRobin:
		return &RoundRobin{HealthyOnly: healthyOnly}, nil
	case domain.PolicyLeastConnections:
		return LeastConnections{}, nil
	default:
		return nil, domain.ErrUnknownPolicy
	}
}
