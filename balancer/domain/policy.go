package domain

import (
	"fmt"
	"strings"
)

type Policy string

const (
	PolicyRoundRobin       Policy = "round_robin"
	PolicyLeastConnections Policy = "least_connections"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyRoundRobin, "":
		return PolicyRoundRobin, nil
	case PolicyLeastConnections:
		return PolicyLeastConnections, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Selector escolhe um endpoint do registro. Não mexe no contador de conexões.
// Sem candidato devolve ErrNoUpstreamAvailable.
type Selector interface {
	Pick(reg *Registry) (*Endpoint, error)
}
