// Package application contém os casos de uso da admissão: a avaliação de uma
// requisição (bot -> shield -> cota por papel) e a aquisição de vagas de
// concorrência com timeout.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Engine.Evaluate(ctx, principal, req) retorna uma Decision com motivo tipado.
package application
