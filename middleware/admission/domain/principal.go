package domain

import "strings"

// Role é o papel do chamador. O conjunto é fechado: qualquer valor fora dele
// é tratado como guest.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Roles retorna todos os papéis conhecidos, do menos ao mais privilegiado.
func Roles() []Role {
	return []Role{RoleGuest, RoleUser, RoleAdmin}
}

// ParseRole normaliza s e informa se corresponde a um papel conhecido.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r.Valid() {
		return r, true
	}
	return RoleGuest, false
}

func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleUser, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Principal é a identidade resolvida para uma requisição.
// ID vazio significa chamador não autenticado.
type Principal struct {
	ID    string
	Role  Role
	Email string
}

// Guest é o principal usado quando não há credencial válida.
func Guest() Principal {
	return Principal{Role: RoleGuest}
}

func (p Principal) Authenticated() bool { return p.ID != "" }

// EffectiveRole devolve o papel do principal, caindo para guest quando desconhecido.
func (p Principal) EffectiveRole() Role {
	if p.Role.Valid() {
		return p.Role
	}
	return RoleGuest
}
