package proxy

import "net/http"

// Pipeline monta as etapas na ordem fixa: autenticação, rate limit e, por
// último, seleção + encaminhamento. Cada etapa pode encerrar a requisição.
func Pipeline(authenticate, rateLimit func(http.Handler) http.Handler, forward http.Handler) http.Handler {
	h := forward
	if rateLimit != nil {
		h = rateLimit(h)
	}
	if authenticate != nil {
		h = authenticate(h)
	}
	return h
}
