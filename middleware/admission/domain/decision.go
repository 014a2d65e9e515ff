package domain

import "time"

// DenyReason classifica por que a admissão rejeitou a requisição.
type DenyReason int

const (
	ReasonNone DenyReason = iota
	ReasonBot
	ReasonShield
	ReasonRateLimit
	ReasonUnauthenticated
	ReasonForbidden
)

func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonBot:
		return "bot"
	case ReasonShield:
		return "shield"
	case ReasonRateLimit:
		return "rate_limit"
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonForbidden:
		return "forbidden"
	}
	return "unknown"
}

// Decision é o resultado da avaliação de uma requisição. Vive só durante a requisição.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	// Rule é a assinatura que casou em bot/shield (vazio para rate limit).
	Rule string

	Policy    Policy
	Key       Key
	Count     int
	Remaining int
	ResetAt   time.Time
}

// Deny monta uma decisão negada pelo motivo informado.
func Deny(reason DenyReason, rule string) Decision {
	return Decision{Reason: reason, Rule: rule}
}
