package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"errors"
	"time"
)

// Key é a identidade do cliente usada como partição do contador
// (subject do token ou origem da conexão).
type Key string

const (
	DefaultMax    = 3
	DefaultWindow = 30 * time.Second
)

// ErrStoreUnavailable indica que o backend dos contadores não respondeu.
// O adapter HTTP decide entre fail-open e fail-closed.
var ErrStoreUnavailable = errors.New("ratelimit: counter store unavailable")

// Limit é a configuração da janela fixa: no máximo Max requisições a cada Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// Normalize aplica os padrões (3 por 30s) em campos zerados.
func (l Limit) Normalize() Limit {
	if l.Max <= 0 {
		l.Max = DefaultMax
	}
	if l.Window <= 0 {
		l.Window = DefaultWindow
	}
	return l
}

// Window é o estado de um contador: quantas requisições já entraram e quando a
// janela atual termina. Todas as requisições da janela compartilham o mesmo End.
type Window struct {
	Count int
	End   time.Time
}

// Admit aplica o algoritmo de janela fixa sobre o estado e devolve a decisão.
//
// Não é seguro para uso concorrente: o chamador serializa por chave.
func (w *Window) Admit(now time.Time, limit Limit) Decision {
	limit = limit.Normalize()

	if w.Count == 0 || !now.Before(w.End) {
		w.Count = 1
		w.End = now.Add(limit.Window)
		return Decision{Allowed: true, Limit: limit.Max, Remaining: limit.Max - 1, ResetAt: w.End}
	}

	if w.Count < limit.Max {
		w.Count++
		return Decision{Allowed: true, Limit: limit.Max, Remaining: limit.Max - w.Count, ResetAt: w.End}
	}

	return Decision{
		Allowed:    false,
		Limit:      limit.Max,
		Remaining:  0,
		ResetAt:    w.End,
		RetryAfter: CeilSeconds(w.End.Sub(now)),
	}
}

type Decision struct {
	Allowed bool
	// Limit e Remaining alimentam os headers X-RateLimit-*.
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear,
	// já arredondado para cima em segundos inteiros. Se 0, não há recomendação.
	RetryAfter time.Duration
}

// CeilSeconds arredonda d para cima em segundos inteiros; negativo vira 0.
func CeilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return ((d + time.Second - 1) / time.Second) * time.Second
}

// CounterStore guarda os contadores por chave e aplica Admit de forma atômica
// por chave: duas chamadas concorrentes para a mesma Key nunca observam o
// mesmo Count.
type CounterStore interface {
	Admit(ctx context.Context, key Key, now time.Time, limit Limit) (Decision, error)
}

// Clock permite injetar o tempo nos testes.
type Clock func() time.Time

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// Usado pelo throttle do /login (token bucket via golang.org/x/time/rate),
// separado da janela fixa das rotas protegidas.
type Limiter interface {
	Allow() bool
}

// RetryHinter é implementado por limiters que sabem quanto falta para a próxima
// permissão.
type RetryHinter interface {
	RetryIn() time.Duration
}

// LimiterStore obtém um limiter por chave (ex: IP, usuário).
type LimiterStore interface {
	Get(Key) Limiter
}
