package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acquisitions-gateway/internal/config"
	"acquisitions-gateway/middleware/admission/domain"
	"acquisitions-gateway/middleware/admission/infra"
	"acquisitions-gateway/middleware/identity"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPoliciesCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := run(t, "policies")
	require.NoError(t, err)
	for _, want := range []string{"guest-rate-limit", "user-rate-limit", "admin-rate-limit", "1m0s", "20"} {
		assert.Contains(t, out, want)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GATEWAY_AUTH_JWT_SECRET", "cli-secret")

	out, err := run(t, "token", "--id", "42", "--role", "admin")
	require.NoError(t, err)

	res, err := identity.NewHMACResolver([]byte("cli-secret"))
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+strings.TrimSpace(out))

	p, err := res.Resolve(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{ID: "42", Role: domain.RoleAdmin}, p)
}

func TestTokenCommand_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "token", "--id", "1")
	assert.ErrorContains(t, err, "jwt_secret")

	t.Setenv("GATEWAY_AUTH_JWT_SECRET", "cli-secret")
	_, err = run(t, "token", "--id", "1", "--role", "root")
	assert.ErrorContains(t, err, "unknown role")
}

func TestBuildEngineAndStats(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)
	cfg.Admission.Bot.CadenceRPS = 10
	cfg.Admission.Bot.CadenceBurst = 20
	cfg.Stats.Driver = "memory"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := buildEngine(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &infra.MemoryWindowStore{}, engine.Store)
	assert.NotNil(t, engine.Bots)
	assert.NotNil(t, engine.Shield)

	stats, closeStats, err := buildStats(cfg, nil)
	require.NoError(t, err)
	defer closeStats()
	assert.IsType(t, &infra.MemoryStatsStore{}, stats)

	cfg.Stats.Driver = "none"
	stats, _, err = buildStats(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestSeedUsers(t *testing.T) {
	got := seedUsers([]config.SeedUser{{ID: "1", Name: "A", Email: "a@example.com", Role: "ADMIN"}})
	require.Len(t, got, 1)
	assert.Equal(t, domain.RoleAdmin, got[0].Role)
}
