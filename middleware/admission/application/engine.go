package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"acquisitions-gateway/middleware/admission/domain"
)

const defaultStoreTimeout = 2 * time.Second

// Engine é o motor de decisão da admissão.
//
// Ordem fixa de avaliação: bot, shield e por fim a cota do papel. A primeira
// regra que casar define o motivo da negação; bot e shield não consomem cota.
// Falha do store (erro ou timeout) nunca vira allow nem deny: volta como erro
// embrulhando domain.ErrEvaluation.
type Engine struct {
	Policies domain.PolicyTable
	Store    domain.WindowStore
	Bots     domain.Classifier
	Shield   domain.Classifier

	StoreTimeout time.Duration
	// KeyByPrincipal faz chamadores autenticados usarem o próprio ID como
	// identidade do balde em vez do endereço de origem.
	KeyByPrincipal bool

	Now func() time.Time
}

// Validate confere a configuração do motor na inicialização.
func (e Engine) Validate() error {
	if e.Store == nil {
		return errors.New("admission engine requires a window store")
	}
	return e.Policies.Validate()
}

func (e Engine) Evaluate(ctx context.Context, p domain.Principal, req domain.RequestInfo) (domain.Decision, error) {
	if e.Bots != nil {
		if rule, ok := e.Bots.Match(ctx, req); ok {
			return domain.Deny(domain.ReasonBot, rule), nil
		}
	}
	if e.Shield != nil {
		if rule, ok := e.Shield.Match(ctx, req); ok {
			return domain.Deny(domain.ReasonShield, rule), nil
		}
	}

	role := p.EffectiveRole()
	policy := e.Policies.For(role)
	key := e.bucketKey(role, p, req)
	if policy.MaxRequests <= 0 || policy.Window <= 0 {
		return domain.Decision{Key: key}, fmt.Errorf("%w: no usable policy for role %q", domain.ErrEvaluation, role)
	}
	if e.Store == nil {
		return domain.Decision{Key: key, Policy: policy}, fmt.Errorf("%w: %w", domain.ErrEvaluation, domain.ErrStoreUnavailable)
	}

	timeout := e.StoreTimeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	storeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := e.Store.Take(storeCtx, key, policy, e.now())
	if err == nil && storeCtx.Err() != nil {
		// o store ignorou o contexto mas estourou o prazo
		err = storeCtx.Err()
	}
	if err != nil {
		return domain.Decision{Key: key, Policy: policy}, fmt.Errorf("%w: take %s: %w", domain.ErrEvaluation, key, err)
	}

	dec := domain.Decision{
		Allowed: res.Allowed,
		Policy:  policy,
		Key:     key,
		Count:   res.Count,
		ResetAt: res.ResetAt,
	}
	if !res.Allowed {
		dec.Reason = domain.ReasonRateLimit
		return dec, nil
	}
	dec.Remaining = policy.MaxRequests - res.Count
	if dec.Remaining < 0 {
		dec.Remaining = 0
	}
	return dec, nil
}

func (e Engine) bucketKey(role domain.Role, p domain.Principal, req domain.RequestInfo) domain.Key {
	if e.KeyByPrincipal && p.Authenticated() {
		return domain.NewKey(role, "id="+p.ID)
	}
	return domain.NewKey(role, req.ClientKey)
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
