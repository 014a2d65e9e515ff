package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicies_CoverEveryRole(t *testing.T) {
	table := DefaultPolicies()
	require.NoError(t, table.Validate())

	assert.Equal(t, 20, table.For(RoleAdmin).MaxRequests)
	assert.Equal(t, 10, table.For(RoleUser).MaxRequests)
	assert.Equal(t, 5, table.For(RoleGuest).MaxRequests)
	for _, role := range Roles() {
		assert.Equal(t, time.Minute, table.For(role).Window, role)
	}
}

func TestPolicyTable_UnknownRoleFallsBackToGuest(t *testing.T) {
	table := DefaultPolicies()
	p := table.For(Role("superuser"))
	assert.Equal(t, RoleGuest, p.Role)
	assert.Equal(t, "guest-rate-limit", p.Name())
}

func TestNewPolicyTable_RejectsMissingRole(t *testing.T) {
	_, err := NewPolicyTable(
		Policy{Role: RoleAdmin, Window: time.Minute, MaxRequests: 20},
		Policy{Role: RoleGuest, Window: time.Minute, MaxRequests: 5},
	)
	require.ErrorIs(t, err, ErrInvalidPolicy)
	assert.Contains(t, err.Error(), `"user"`)
}

func TestNewPolicyTable_RejectsDuplicatesAndBadValues(t *testing.T) {
	tests := []struct {
		name     string
		policies []Policy
	}{
		{"duplicate", []Policy{
			{Role: RoleGuest, Window: time.Minute, MaxRequests: 5},
			{Role: RoleGuest, Window: time.Minute, MaxRequests: 6},
		}},
		{"zero window", []Policy{
			{Role: RoleGuest, Window: 0, MaxRequests: 5},
			{Role: RoleUser, Window: time.Minute, MaxRequests: 10},
			{Role: RoleAdmin, Window: time.Minute, MaxRequests: 20},
		}},
		{"zero max", []Policy{
			{Role: RoleGuest, Window: time.Minute, MaxRequests: 0},
			{Role: RoleUser, Window: time.Minute, MaxRequests: 10},
			{Role: RoleAdmin, Window: time.Minute, MaxRequests: 20},
		}},
		{"unknown role", []Policy{
			{Role: RoleGuest, Window: time.Minute, MaxRequests: 5},
			{Role: RoleUser, Window: time.Minute, MaxRequests: 10},
			{Role: RoleAdmin, Window: time.Minute, MaxRequests: 20},
			{Role: Role("owner"), Window: time.Minute, MaxRequests: 50},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicyTable(tt.policies...)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	r, ok = ParseRole("root")
	assert.False(t, ok)
	assert.Equal(t, RoleGuest, r)
}

func TestNewKey_FallsBackToUnknownClient(t *testing.T) {
	assert.Equal(t, Key("guest:unknown"), NewKey(RoleGuest, ""))
	assert.Equal(t, Key("user:10.0.0.1"), NewKey(RoleUser, "10.0.0.1"))
}

func TestPrincipal_EffectiveRole(t *testing.T) {
	assert.Equal(t, RoleGuest, Principal{ID: "7", Role: Role("root")}.EffectiveRole())
	assert.Equal(t, RoleAdmin, Principal{ID: "7", Role: RoleAdmin}.EffectiveRole())
	assert.False(t, Guest().Authenticated())
}
