// Package config carrega a configuração do gateway de um YAML opcional, do
// .env e das variáveis GATEWAY_*, nessa ordem crescente de precedência.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"acquisitions-gateway/middleware/admission/domain"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Admission   AdmissionConfig   `mapstructure:"admission"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Users       UsersConfig       `mapstructure:"users"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig define como os bearer tokens são validados. Sem secret e sem
// URL de JWKS todo chamador é guest.
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWKSURL        string        `mapstructure:"jwks_url"`
	JWKSRefresh    time.Duration `mapstructure:"jwks_refresh"`
	Issuer         string        `mapstructure:"issuer"`
	CookieName     string        `mapstructure:"cookie_name"`
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
}

type PolicyConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
}

type BotConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	AllowedAgents []string `mapstructure:"allowed_agents"`
	// CadenceRPS zero desliga a checagem de cadência.
	CadenceRPS   float64 `mapstructure:"cadence_rps"`
	CadenceBurst int     `mapstructure:"cadence_burst"`
}

type ShieldConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type AdmissionConfig struct {
	// Store é "memory" ou "redis".
	Store          string                  `mapstructure:"store"`
	StoreTimeout   time.Duration           `mapstructure:"store_timeout"`
	KeyHeader      string                  `mapstructure:"key_header"`
	TrustXFF       bool                    `mapstructure:"trust_xff"`
	AddHeaders     bool                    `mapstructure:"add_headers"`
	KeyByPrincipal bool                    `mapstructure:"key_by_principal"`
	Policies       map[string]PolicyConfig `mapstructure:"policies"`
	Bot            BotConfig               `mapstructure:"bot"`
	Shield         ShieldConfig            `mapstructure:"shield"`
}

type ConcurrencyConfig struct {
	Max     int           `mapstructure:"max"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type StatsConfig struct {
	// Driver: none, memory, redis ou kafka.
	Driver       string        `mapstructure:"driver"`
	Prefix       string        `mapstructure:"prefix"`
	TTL          time.Duration `mapstructure:"ttl"`
	Bucket       string        `mapstructure:"bucket"`
	TrackKeys    bool          `mapstructure:"track_keys"`
	KafkaBrokers []string      `mapstructure:"kafka_brokers"`
	KafkaTopic   string        `mapstructure:"kafka_topic"`
}

type UpstreamConfig struct {
	// AuthURL, quando definido, recebe /api/auth/* via proxy reverso.
	AuthURL string `mapstructure:"auth_url"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type SeedUser struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
	Role  string `mapstructure:"role"`
}

type UsersConfig struct {
	Seed []SeedUser `mapstructure:"seed"`
}

// PolicyTable monta a tabela de políticas por papel já validada.
func (c AdmissionConfig) PolicyTable() (domain.PolicyTable, error) {
	roles := make([]string, 0, len(c.Policies))
	for r := range c.Policies {
		roles = append(roles, r)
	}
	sort.Strings(roles)

	policies := make([]domain.Policy, 0, len(roles))
	for _, name := range roles {
		role, ok := domain.ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidPolicy, name)
		}
		pc := c.Policies[name]
		policies = append(policies, domain.Policy{Role: role, Window: pc.Window, MaxRequests: pc.MaxRequests})
	}
	return domain.NewPolicyTable(policies...)
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be > 0"))
	}

	if c.Auth.JWKSURL != "" {
		if err := validateURL(c.Auth.JWKSURL); err != nil {
			errs = append(errs, fmt.Errorf("auth.jwks_url: %w", err))
		}
	}
	if c.Auth.ResolveTimeout <= 0 {
		errs = append(errs, errors.New("auth.resolve_timeout must be > 0"))
	}

	switch c.Admission.Store {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			errs = append(errs, errors.New("redis.addr is required when admission.store=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("admission.store must be memory or redis, got %q", c.Admission.Store))
	}
	if c.Admission.StoreTimeout <= 0 {
		errs = append(errs, errors.New("admission.store_timeout must be > 0"))
	}
	if _, err := c.Admission.PolicyTable(); err != nil {
		errs = append(errs, fmt.Errorf("admission.policies: %w", err))
	}
	if c.Admission.Bot.CadenceRPS < 0 {
		errs = append(errs, errors.New("admission.bot.cadence_rps must be >= 0"))
	}
	if c.Admission.Bot.CadenceRPS > 0 && c.Admission.Bot.CadenceBurst <= 0 {
		errs = append(errs, errors.New("admission.bot.cadence_burst must be > 0 when cadence_rps is set"))
	}

	if c.Concurrency.Max < 0 {
		errs = append(errs, errors.New("concurrency.max must be >= 0"))
	}

	switch c.Stats.Driver {
	case "none", "memory":
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			errs = append(errs, errors.New("redis.addr is required when stats.driver=redis"))
		}
	case "kafka":
		if len(c.Stats.KafkaBrokers) == 0 || strings.TrimSpace(c.Stats.KafkaTopic) == "" {
			errs = append(errs, errors.New("stats.kafka_brokers and stats.kafka_topic are required when stats.driver=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("stats.driver must be none, memory, redis or kafka, got %q", c.Stats.Driver))
	}

	if c.Upstream.AuthURL != "" {
		if err := validateURL(c.Upstream.AuthURL); err != nil {
			errs = append(errs, fmt.Errorf("upstream.auth_url: %w", err))
		}
	}

	for i, u := range c.Users.Seed {
		if strings.TrimSpace(u.ID) == "" {
			errs = append(errs, fmt.Errorf("users.seed[%d]: id is required", i))
		}
		if _, ok := domain.ParseRole(u.Role); !ok {
			errs = append(errs, fmt.Errorf("users.seed[%d]: unknown role %q", i, u.Role))
		}
	}

	return errors.Join(errs...)
}

// UsesRedis informa se algum componente precisa de cliente Redis.
func (c Config) UsesRedis() bool {
	return c.Admission.Store == "redis" || c.Stats.Driver == "redis"
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
