package gateway

import (
	"fmt"
	"time"
)

// DependencyConfig is the call policy for one named dependency.
type DependencyConfig struct {
	// BaseURL prefixes relative request paths.
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds each network attempt. A timeout counts as a
	// dependency failure for the breaker.
	Timeout time.Duration `mapstructure:"timeout"`

	// RequestsPerMinute caps outbound calls to this dependency.
	// 0 disables the cap.
	RequestsPerMinute int64 `mapstructure:"requests_per_minute"`

	// FailureThreshold opens the circuit after this many consecutive
	// dependency failures.
	FailureThreshold int `mapstructure:"failure_threshold"`

	// RecoveryTimeout is how long the circuit stays open before a probe.
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout"`

	// MaxAttempts is the total retry budget per call (first attempt
	// included).
	MaxAttempts int `mapstructure:"max_attempts"`

	// CacheTTL is the freshness window for cacheable GET responses.
	// 0 disables caching.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Config declares every reachable dependency. Calls to undeclared
// names are rejected up front.
type Config struct {
	Default      DependencyConfig            `mapstructure:"default"`
	Dependencies map[string]DependencyConfig `mapstructure:"dependencies"`
}

// DefaultConfig returns baseline policies with no dependencies wired.
func DefaultConfig() Config {
	return Config{
		Default: DependencyConfig{
			Timeout:           5 * time.Second,
			RequestsPerMinute: 600,
			FailureThreshold:  5,
			RecoveryTimeout:   30 * time.Second,
			MaxAttempts:       3,
			CacheTTL:          30 * time.Second,
		},
		Dependencies: make(map[string]DependencyConfig),
	}
}

// Validate checks the dependency table.
func (c *Config) Validate() error {
	for name, dep := range c.Dependencies {
		if dep.BaseURL == "" {
			return fmt.Errorf("dependency %q: base_url is required", name)
		}
		if dep.RequestsPerMinute < 0 {
			return fmt.Errorf("dependency %q: requests_per_minute must be >= 0", name)
		}
	}
	return nil
}

// resolve fills gaps in a dependency's config from the defaults.
func (c *Config) resolve(name string) (DependencyConfig, bool) {
	dep, exists := c.Dependencies[name]
	if !exists {
		return DependencyConfig{}, false
	}
	if dep.Timeout <= 0 {
		dep.Timeout = c.Default.Timeout
	}
	if dep.RequestsPerMinute == 0 {
		dep.RequestsPerMinute = c.Default.RequestsPerMinute
	}
	if dep.FailureThreshold <= 0 {
		dep.FailureThreshold = c.Default.FailureThreshold
	}
	if dep.RecoveryTimeout <= 0 {
		dep.RecoveryTimeout = c.Default.RecoveryTimeout
	}
	if dep.MaxAttempts <= 0 {
		dep.MaxAttempts = c.Default.MaxAttempts
	}
	if dep.CacheTTL == 0 {
		dep.CacheTTL = c.Default.CacheTTL
	}
	return dep, true
}
