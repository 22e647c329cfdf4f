// Package settings loads process configuration from TOML with CLO_ environment
// overrides.
package settings

import (
	"fmt"
	"strings"

	"corp_finance/pkg/core/logger"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CLO_HTTP_PORT.
const EnvPrefix = "CLO"

// Config is the full process configuration.
type Config struct {
	ServiceName string        `mapstructure:"service_name"`
	Environment string        `mapstructure:"environment"` // dev, staging, prod
	HTTP        HTTPConfig    `mapstructure:"http"`
	Store       StoreConfig   `mapstructure:"store"`
	Logger      logger.Config `mapstructure:"logger"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// HTTPConfig for cmd/api.
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"` // seconds
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigin  string `mapstructure:"allow_origin"`
}

// Addr is the listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// StoreConfig selects run persistence. A database URL wins over the directory.
type StoreConfig struct {
	DatabaseURL string `mapstructure:"database_url"`
	Dir         string `mapstructure:"dir"`
}

// MetricsConfig
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads the TOML file at path (skipped when path is empty), applies
// defaults and environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// plain DATABASE_URL is honoured too
	if err := v.BindEnv("store.database_url", EnvPrefix+"_STORE_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields the entry points depend on.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Store.DatabaseURL == "" && c.Store.Dir == "" {
		return fmt.Errorf("store needs a database_url or a dir")
	}
	switch c.Logger.Output {
	case "stdout", "file", "both":
	default:
		return fmt.Errorf("invalid logger output: %q", c.Logger.Output)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /: %q", c.Metrics.Path)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "clo-waterfall")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("http.allow_origin", "*")

	v.SetDefault("store.database_url", "")
	v.SetDefault("store.dir", ".cache/clo/runs")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/clo.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
