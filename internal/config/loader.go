package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "GATEWAY"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwks_url", "")
	v.SetDefault("auth.jwks_refresh", time.Hour)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.cookie_name", "token")
	v.SetDefault("auth.resolve_timeout", 2*time.Second)
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("admission.store", "memory")
	v.SetDefault("admission.store_timeout", 2*time.Second)
	v.SetDefault("admission.key_header", "")
	v.SetDefault("admission.trust_xff", false)
	v.SetDefault("admission.add_headers", false)
	v.SetDefault("admission.key_by_principal", false)
	v.SetDefault("admission.policies.admin.window", time.Minute)
	v.SetDefault("admission.policies.admin.max_requests", 20)
	v.SetDefault("admission.policies.user.window", time.Minute)
	v.SetDefault("admission.policies.user.max_requests", 10)
	v.SetDefault("admission.policies.guest.window", time.Minute)
	v.SetDefault("admission.policies.guest.max_requests", 5)
	v.SetDefault("admission.bot.enabled", true)
	v.SetDefault("admission.bot.allowed_agents", []string{})
	v.SetDefault("admission.bot.cadence_rps", 0.0)
	v.SetDefault("admission.bot.cadence_burst", 0)
	v.SetDefault("admission.shield.enabled", true)

	v.SetDefault("concurrency.max", 100)
	v.SetDefault("concurrency.timeout", time.Duration(0))

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "admission")

	v.SetDefault("stats.driver", "none")
	v.SetDefault("stats.prefix", "admission:stats")
	v.SetDefault("stats.ttl", 24*time.Hour)
	v.SetDefault("stats.bucket", "minute")
	v.SetDefault("stats.track_keys", false)
	v.SetDefault("stats.kafka_brokers", []string{})
	v.SetDefault("stats.kafka_topic", "admission-decisions")

	v.SetDefault("upstream.auth_url", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("users.seed", []map[string]any{
		{"id": "1", "name": "Admin", "email": "admin@acquisitions.local", "role": "admin"},
		{"id": "2", "name": "Jane Doe", "email": "jane@acquisitions.local", "role": "user"},
	})
}

// New devolve um viper com defaults e leitura das variáveis GATEWAY_*.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load lê o .env (se existir), o arquivo de config (caminho explícito, ou
// gateway.yaml no diretório atual ou em /etc/acquisitions-gateway) e o
// ambiente, e valida o resultado.
func Load(v *viper.Viper, path string) (*Config, error) {
	// .env é opcional
	_ = godotenv.Load()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("gateway")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/acquisitions-gateway")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
