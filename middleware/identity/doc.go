// Package identity resolve o principal (id + papel) a partir das credenciais
// da requisição e o transporta no contexto.
//
// Credencial ausente, malformada, expirada ou com assinatura inválida nunca
// bloqueia a requisição: o chamador vira guest. Só falhas operacionais
// (contexto cancelado, timeout de resolução) voltam como erro.
package identity
