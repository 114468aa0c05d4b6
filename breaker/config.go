package breaker

import "time"

// Config is the breaker component configuration.
type Config struct {
	// Enabled: when false every call executes directly.
	Enabled bool `mapstructure:"enabled"`

	// EventBusBuffer sizes the event channel (default 500).
	EventBusBuffer int `mapstructure:"event_bus_buffer"`

	// Default applies to dependencies without an explicit entry.
	Default ResourceConfig `mapstructure:"default"`

	// Resources holds per-dependency overrides keyed by name.
	Resources map[string]ResourceConfig `mapstructure:"resources"`
}

// ResourceConfig is one dependency's breaker tuning.
type ResourceConfig struct {
	// FailureThreshold is the consecutive dependency-fault count that
	// opens the circuit (default 5).
	FailureThreshold int `mapstructure:"failure_threshold"`

	// RecoveryTimeout is how long an open circuit waits before allowing
	// the half-open probe (default 30s).
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout"`
}

// DefaultConfig returns the breaker defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		EventBusBuffer: 500,
		Default:        DefaultResourceConfig(),
		Resources:      make(map[string]ResourceConfig),
	}
}

// DefaultResourceConfig returns per-dependency defaults.
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration and fills gaps.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.EventBusBuffer <= 0 {
		c.EventBusBuffer = 500
	}
	c.Default = c.Default.withDefaults()
	for name, rc := range c.Resources {
		c.Resources[name] = rc.withDefaults()
	}
	return nil
}

// GetResourceConfig resolves the config for a dependency.
func (c *Config) GetResourceConfig(resource string) ResourceConfig {
	if rc, exists := c.Resources[resource]; exists {
		return rc.withDefaults()
	}
	return c.Default.withDefaults()
}

func (rc ResourceConfig) withDefaults() ResourceConfig {
	def := DefaultResourceConfig()
	if rc.FailureThreshold <= 0 {
		rc.FailureThreshold = def.FailureThreshold
	}
	if rc.RecoveryTimeout <= 0 {
		rc.RecoveryTimeout = def.RecoveryTimeout
	}
	return rc
}
