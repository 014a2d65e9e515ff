// Package admission fornece os adapters HTTP (net/http) da admissão de
// requisições e do limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (principal, política, decisão), sem net/http
//   - application: motor de decisão (bot, shield, cota por papel) e aquisição de vagas
//   - infra: implementações concretas (janela deslizante em memória/Redis, classificadores, stats)
//   - admission (este pacote): middlewares HTTP + extração da chave do cliente + tradução
//     da decisão para status/headers/envelope JSON
//
// Fluxo por requisição:
//
//  1. Resolve o principal (guest quando não há credencial válida)
//  2. Chama o motor: bot, depois shield, depois a cota do papel
//  3. Negação responde 403 com a mensagem do motivo; falha operacional responde 500
//  4. Se permitido, anexa o principal ao contexto e chama o próximo handler
package admission
