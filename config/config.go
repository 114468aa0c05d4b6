// Package config aggregates every component's configuration and loads
// it from an optional YAML file plus STAGEPASS_-prefixed environment
// variables. Environment wins over file, file wins over defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/stagepass/go-stagepass-core/admission"
	"github.com/stagepass/go-stagepass-core/audit"
	"github.com/stagepass/go-stagepass-core/gateway"
	"github.com/stagepass/go-stagepass-core/health"
	"github.com/stagepass/go-stagepass-core/logger"
	"github.com/stagepass/go-stagepass-core/redis"
)

// EnvPrefix is the environment variable namespace.
const EnvPrefix = "STAGEPASS"

// ServerConfig is the HTTP server surface.
type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_seconds"`
}

// LimiterConfig selects the sliding-window backing store.
type LimiterConfig struct {
	// Store: "memory" or "redis".
	Store string `mapstructure:"store"`
}

// AuditConfig wires the audit trail.
type AuditConfig struct {
	// KafkaEnabled adds the Kafka sink next to the log sink.
	KafkaEnabled bool              `mapstructure:"kafka_enabled"`
	Kafka        audit.KafkaConfig `mapstructure:"kafka"`
}

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig         `mapstructure:"server"`
	Logger    logger.ManagerConfig `mapstructure:"logger"`
	Redis     redis.Config         `mapstructure:"redis"`
	Limiter   LimiterConfig        `mapstructure:"limiter"`
	Health    health.Config        `mapstructure:"health"`
	Admission admission.Config     `mapstructure:"admission"`
	Gateway   gateway.Config       `mapstructure:"gateway"`
	Audit     AuditConfig          `mapstructure:"audit"`
}

// Default returns the full defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15,
		},
		Logger:    logger.DefaultConfig(),
		Redis:     redis.DefaultConfig(),
		Limiter:   LimiterConfig{Store: "memory"},
		Health:    health.DefaultConfig(),
		Admission: admission.DefaultConfig(),
		Gateway:   gateway.DefaultConfig(),
	}
}

// Load reads configPath (optional, "" skips the file) and the
// environment on top of the defaults.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	bindDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// bindDefaults registers defaults so AutomaticEnv resolves keys that
// appear in no config file.
func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.shutdown_timeout_seconds", cfg.Server.ShutdownTimeout)
	v.SetDefault("logger.level", cfg.Logger.Level)
	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("limiter.store", cfg.Limiter.Store)
	v.SetDefault("admission.enabled", cfg.Admission.Enabled)
	v.SetDefault("admission.ddos_count_threshold", cfg.Admission.DDoSCountThreshold)
	v.SetDefault("audit.kafka_enabled", cfg.Audit.KafkaEnabled)
}

// Validate checks the aggregate.
func (c *Config) Validate() error {
	switch c.Limiter.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("limiter.store must be memory or redis, got %q", c.Limiter.Store)
	}
	if err := c.Admission.Validate(); err != nil {
		return err
	}
	if err := c.Gateway.Validate(); err != nil {
		return err
	}
	if c.Limiter.Store == "redis" {
		if err := c.Redis.Validate(); err != nil {
			return err
		}
	}
	if c.Audit.KafkaEnabled {
		if len(c.Audit.Kafka.Brokers) == 0 || c.Audit.Kafka.Topic == "" {
			return fmt.Errorf("audit.kafka requires brokers and topic when enabled")
		}
	}
	return nil
}
