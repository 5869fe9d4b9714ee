package conf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/reranker"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RERANK_SERVER_PORT
const EnvPrefix = "RERANK"

type Config struct {
	Server ServerConfig  `mapstructure:"server"`
	Log    logger.Config `mapstructure:"log"`
	Auth   AuthConfig    `mapstructure:"auth"`
	Rerank RerankConfig  `mapstructure:"rerank"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Mode            string `mapstructure:"mode"`             // gin mode: debug, release, test
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig enables bearer token checks on the API when JWTSecret is set
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
	TokenTTL  int    `mapstructure:"token_ttl"` // hours
}

// Enabled reports whether API authentication is on
func (c *AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

type RerankConfig struct {
	// Backend is used when a request does not name one
	Backend      string         `mapstructure:"backend"`
	MaxEntries   int            `mapstructure:"max_entries"`
	SingleFlight bool           `mapstructure:"single_flight"`
	Workers      int            `mapstructure:"workers"`
	Policy       types.Policy   `mapstructure:"policy"`
	Backends     BackendsConfig `mapstructure:"backends"`
}

type BackendsConfig struct {
	OpenAICompatible BackendConfig `mapstructure:"openai_compatible"`
	Cohere           BackendConfig `mapstructure:"cohere"`
}

type BackendConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	reranker.Config `mapstructure:",squash"`
}

// Enabled returns the configs of every enabled backend with their IDs set
func (c *RerankConfig) Enabled() []*reranker.Config {
	var out []*reranker.Config
	if c.Backends.OpenAICompatible.Enabled {
		cfg := c.Backends.OpenAICompatible.Config
		cfg.ID = types.BackendOpenAICompatible
		out = append(out, &cfg)
	}
	if c.Backends.Cohere.Enabled {
		cfg := c.Backends.Cohere.Config
		cfg.ID = types.BackendCohere
		out = append(out, &cfg)
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5)

	log := logger.DefaultConfig()
	v.SetDefault("log.level", log.Level)
	v.SetDefault("log.format", log.Format)
	v.SetDefault("log.output", log.Output)
	v.SetDefault("log.enable_caller", log.EnableCaller)
	v.SetDefault("log.enable_stacktrace", log.EnableStacktrace)
	v.SetDefault("log.file.filename", log.File.Filename)
	v.SetDefault("log.file.max_size", log.File.MaxSize)
	v.SetDefault("log.file.max_age", log.File.MaxAge)
	v.SetDefault("log.file.max_backups", log.File.MaxBackups)
	v.SetDefault("log.file.compress", log.File.Compress)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "rerank-gateway")
	v.SetDefault("auth.token_ttl", 24)

	policy := types.DefaultPolicy()
	v.SetDefault("rerank.backend", string(types.BackendOpenAICompatible))
	v.SetDefault("rerank.max_entries", types.DefaultMaxCacheEntries)
	v.SetDefault("rerank.single_flight", true)
	v.SetDefault("rerank.workers", 8)
	v.SetDefault("rerank.policy.top_k", policy.TopK)
	v.SetDefault("rerank.policy.threshold", policy.Threshold)
	v.SetDefault("rerank.policy.include_original_scores", policy.IncludeOriginalScores)
	v.SetDefault("rerank.policy.enable_cache", policy.EnableCache)
	v.SetDefault("rerank.policy.cache_ttl", policy.CacheTTL)

	v.SetDefault("rerank.backends.openai_compatible.enabled", false)
	v.SetDefault("rerank.backends.openai_compatible.endpoint", "")
	v.SetDefault("rerank.backends.openai_compatible.model", "")
	v.SetDefault("rerank.backends.openai_compatible.api_key", "")
	v.SetDefault("rerank.backends.cohere.enabled", false)
	v.SetDefault("rerank.backends.cohere.model", reranker.DefaultCohereModel)
}

// LoadConfig reads a YAML file and applies RERANK_* environment overrides.
// An empty path loads defaults and the environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate validates the whole configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return c.Rerank.Validate()
}

// Validate validates the rerank section and every enabled backend
func (c *RerankConfig) Validate() error {
	if c.MaxEntries <= 0 {
		return errors.New("rerank.max_entries must be greater than 0")
	}
	if c.Workers < 0 {
		return errors.New("rerank.workers must not be negative")
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("rerank.policy: %w", err)
	}

	backends := c.Enabled()
	if len(backends) == 0 {
		return errors.New("no rerank backend enabled")
	}

	defaultFound := false
	for _, b := range backends {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("rerank.backends.%s: %w", b.ID, err)
		}
		if string(b.ID) == c.Backend {
			defaultFound = true
		}
	}
	if !defaultFound {
		return fmt.Errorf("rerank.backend %q is not an enabled backend", c.Backend)
	}

	return nil
}
