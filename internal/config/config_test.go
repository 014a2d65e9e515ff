package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acquisitions-gateway/middleware/admission/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Admission.Store)
	assert.Equal(t, "none", cfg.Stats.Driver)
	assert.True(t, cfg.Admission.Bot.Enabled)
	assert.True(t, cfg.Admission.Shield.Enabled)
	assert.Len(t, cfg.Users.Seed, 2)

	table, err := cfg.Admission.PolicyTable()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPolicies(), table)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
admission:
  store: redis
  policies:
    user:
      window: 30s
      max_requests: 15
redis:
  addr: "localhost:6379"
stats:
  driver: kafka
  kafka_brokers: ["localhost:9092"]
`), 0o600))
	t.Setenv("GATEWAY_ADMISSION_POLICIES_GUEST_MAX_REQUESTS", "3")
	t.Setenv("GATEWAY_LOG_LEVEL", "debug")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.UsesRedis())

	table, err := cfg.Admission.PolicyTable()
	require.NoError(t, err)
	assert.Equal(t, 15, table.For(domain.RoleUser).MaxRequests)
	assert.Equal(t, 30*time.Second, table.For(domain.RoleUser).Window)
	assert.Equal(t, 3, table.For(domain.RoleGuest).MaxRequests)
	assert.Equal(t, 20, table.For(domain.RoleAdmin).MaxRequests)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load(New(), "")
	require.NoError(t, err)

	tests := map[string]func(c *Config){
		"unknown store":          func(c *Config) { c.Admission.Store = "memcached" },
		"redis store needs addr": func(c *Config) { c.Admission.Store = "redis" },
		"kafka needs brokers":    func(c *Config) { c.Stats.Driver = "kafka" },
		"unknown stats driver":   func(c *Config) { c.Stats.Driver = "s3" },
		"unknown policy role": func(c *Config) {
			c.Admission.Policies = map[string]PolicyConfig{
				"guest": {Window: time.Minute, MaxRequests: 5}, "user": {Window: time.Minute, MaxRequests: 10},
				"admin": {Window: time.Minute, MaxRequests: 20}, "superuser": {Window: time.Minute, MaxRequests: 50},
			}
		},
		"missing policy role":  func(c *Config) { c.Admission.Policies = map[string]PolicyConfig{"guest": {Window: time.Minute, MaxRequests: 5}} },
		"zero quota":           func(c *Config) { c.Admission.Policies["user"] = PolicyConfig{Window: time.Minute} },
		"negative concurrency": func(c *Config) { c.Concurrency.Max = -1 },
		"bad upstream":         func(c *Config) { c.Upstream.AuthURL = "ftp://auth" },
		"cadence without burst": func(c *Config) {
			c.Admission.Bot.CadenceRPS = 5
		},
		"seed with unknown role": func(c *Config) { c.Users.Seed = []SeedUser{{ID: "9", Role: "root"}} },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := *base
			c.Admission.Policies = map[string]PolicyConfig{}
			for k, v := range base.Admission.Policies {
				c.Admission.Policies[k] = v
			}
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, base.Validate())
}
