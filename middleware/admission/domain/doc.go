// Package domain define os tipos e contratos da admissão de requisições:
// principal, políticas por papel, decisões com motivo tipado e os stores
// de janela deslizante.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
