// Package application contém os casos de uso do rate limit e do limite de
// concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Admit(ctx, key) devolve a decisão da janela fixa e
// ConcurrencyService.Acquire reserva uma vaga com timeout.
package application
