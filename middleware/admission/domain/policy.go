package domain

import (
	"fmt"
	"time"
)

// Policy é a cota de janela deslizante de um papel.
type Policy struct {
	Role        Role
	Window      time.Duration
	MaxRequests int
}

// Name identifica a regra em logs e headers (ex.: "guest-rate-limit").
func (p Policy) Name() string { return string(p.Role) + "-rate-limit" }

func (p Policy) validate() error {
	if !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidPolicy, p.Role)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: %s window must be > 0", ErrInvalidPolicy, p.Role)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("%w: %s max requests must be > 0", ErrInvalidPolicy, p.Role)
	}
	return nil
}

// PolicyTable mapeia papel -> política. Somente leitura depois de validada.
type PolicyTable map[Role]Policy

// DefaultPolicies: admin 20/min, user 10/min, guest 5/min.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		RoleAdmin: {Role: RoleAdmin, Window: time.Minute, MaxRequests: 20},
		RoleUser:  {Role: RoleUser, Window: time.Minute, MaxRequests: 10},
		RoleGuest: {Role: RoleGuest, Window: time.Minute, MaxRequests: 5},
	}
}

// NewPolicyTable monta e valida a tabela. Papéis repetidos são erro.
func NewPolicyTable(policies ...Policy) (PolicyTable, error) {
	t := make(PolicyTable, len(policies))
	for _, p := range policies {
		if _, dup := t[p.Role]; dup {
			return nil, fmt.Errorf("%w: duplicate policy for role %q", ErrInvalidPolicy, p.Role)
		}
		t[p.Role] = p
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate exige exatamente uma política válida para cada papel de Roles().
func (t PolicyTable) Validate() error {
	for role, p := range t {
		if p.Role != role {
			return fmt.Errorf("%w: policy keyed %q declares role %q", ErrInvalidPolicy, role, p.Role)
		}
		if err := p.validate(); err != nil {
			return err
		}
	}
	for _, role := range Roles() {
		if _, ok := t[role]; !ok {
			return fmt.Errorf("%w: missing policy for role %q", ErrInvalidPolicy, role)
		}
	}
	return nil
}

// For retorna a política do papel. Papel desconhecido usa a política de guest.
func (t PolicyTable) For(role Role) Policy {
	if p, ok := t[role]; ok {
		return p
	}
	return t[RoleGuest]
}
