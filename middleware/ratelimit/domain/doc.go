// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// O algoritmo da janela fixa (Window.Admit) vive aqui como função pura sobre o
// estado do contador; os stores em infra só garantem a atomicidade por chave.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
