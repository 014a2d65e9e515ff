// Package metrics define as métricas Prometheus do gateway: decisões e falhas
// da admissão, negações de autorização, rejeições por concorrência e tráfego
// HTTP por rota.
package metrics
