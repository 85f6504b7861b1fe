package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoUpstreamAvailable = errors.New("balancer: no upstream available")
	ErrUnknownPolicy       = errors.New("balancer: unknown policy")
)

// Registry é a lista ordenada de upstreams. Imutável depois de criada; a troca
// em reload é feita substituindo o Registry inteiro.
type Registry struct {
	endpoints []*Endpoint
}

func NewRegistry(urls []string) (*Registry, error) {
	return buildRegistry(urls, nil)
}

// Rebuild cria um novo Registry reaproveitando os endpoints com a mesma URL,
// para que saúde e conexões em voo sobrevivam ao reload.
func (r *Registry) Rebuild(urls []string) (*Registry, error) {
	return buildRegistry(urls, r)
}

func buildRegistry(urls []string, prev *Registry) (*Registry, error) {
	reg := &Registry{}
	seen := make(map[string]bool, len(urls))
	for _, raw := range urls {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		ep, err := NewEndpoint(raw)
		if err != nil {
			return nil, err
		}
		if seen[ep.String()] {
			return nil, fmt.Errorf("upstream %q listed twice", ep.String())
		}
		seen[ep.String()] = true

		if old := prev.Lookup(ep.String()); old != nil {
			ep = old
		}
		reg.endpoints = append(reg.endpoints, ep)
	}
	return reg, nil
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.endpoints)
}

// Endpoints devolve a lista completa na ordem configurada.
func (r *Registry) Endpoints() []*Endpoint {
	if r == nil {
		return nil
	}
	out := make([]*Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Healthy devolve os endpoints saudáveis agora, na ordem configurada.
func (r *Registry) Healthy() []*Endpoint {
	if r == nil {
		return nil
	}
	out := make([]*Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		if ep.Healthy() {
			out = append(out, ep)
		}
	}
	return out
}

func (r *Registry) Lookup(raw string) *Endpoint {
	if r == nil {
		return nil
	}
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	for _, ep := range r.endpoints {
		if ep.String() == raw {
			return ep
		}
	}
	return nil
}

// Status devolve o snapshot de todos os endpoints, indexado pela URL.
func (r *Registry) Status() map[string]Status {
	out := make(map[string]Status, r.Len())
	for _, ep := range r.Endpoints() {
		out[ep.String()] = ep.Snapshot()
	}
	return out
}
