// Package users é o diretório de usuários em memória por trás de /api/users.
package users

import (
	"context"
	"errors"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"acquisitions-gateway/middleware/admission/domain"
)

var ErrUserNotFound = errors.New("user not found")

// ValidationError lista todos os problemas encontrados numa atualização.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

type User struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Update contém os campos de uma atualização parcial. Campos nil não mudam.
type Update struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Role  *string `json:"role,omitempty"`
}

func (u Update) validate() error {
	var problems []string
	if u.Name == nil && u.Email == nil && u.Role == nil {
		problems = append(problems, "at least one field must be provided")
	}
	if u.Name != nil {
		if n := len(strings.TrimSpace(*u.Name)); n < 2 || n > 255 {
			problems = append(problems, "name must be between 2 and 255 characters")
		}
	}
	if u.Email != nil {
		if addr, err := mail.ParseAddress(strings.TrimSpace(*u.Email)); err != nil || addr.Address != strings.TrimSpace(*u.Email) {
			problems = append(problems, "email must be a valid address")
		}
	}
	if u.Role != nil {
		if r, ok := domain.ParseRole(*u.Role); !ok || r == domain.RoleGuest {
			problems = append(problems, "role must be user or admin")
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

type Directory struct {
	mu    sync.RWMutex
	users map[string]User
	now   func() time.Time
}

func NewDirectory(seed ...User) *Directory {
	d := &Directory{users: make(map[string]User, len(seed)), now: time.Now}
	now := d.now().UTC()
	for _, u := range seed {
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		if u.UpdatedAt.IsZero() {
			u.UpdatedAt = u.CreatedAt
		}
		d.users[u.ID] = u
	}
	return d
}

// List devolve todos os usuários por data de criação e depois id.
func (d *Directory) List(_ context.Context) []User {
	d.mu.RLock()
	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *Directory) Get(_ context.Context, id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (d *Directory) Update(_ context.Context, id string, upd Update) (User, error) {
	if err := upd.validate(); err != nil {
		return User{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.Email))
		for otherID, other := range d.users {
			if otherID != id && other.Email == email {
				return User{}, &ValidationError{Problems: []string{"email is already in use"}}
			}
		}
		u.Email = email
	}
	if upd.Role != nil {
		u.Role, _ = domain.ParseRole(*upd.Role)
	}
	u.UpdatedAt = d.now().UTC()
	d.users[id] = u
	return u, nil
}

func (d *Directory) Delete(_ context.Context, id string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	delete(d.users, id)
	return u, nil
}
