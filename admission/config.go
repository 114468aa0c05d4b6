package admission

import (
	"fmt"
	"strings"
	"time"
)

// TierCaps holds the per-minute request caps per admission tier under
// healthy system load.
type TierCaps struct {
	Global    int64 `mapstructure:"global"`
	IP        int64 `mapstructure:"ip"`
	User      int64 `mapstructure:"user"`
	Anonymous int64 `mapstructure:"anonymous"`
	Endpoint  int64 `mapstructure:"endpoint"`
}

// Config is the admission controller configuration.
type Config struct {
	// Enabled: when false every request is admitted untouched.
	Enabled bool `mapstructure:"enabled"`

	// Window is the rate window length (default 1m).
	Window time.Duration `mapstructure:"window"`

	// Caps are the healthy-load tier caps.
	Caps TierCaps `mapstructure:"caps"`

	// ExemptPaths skip admission entirely (prefix match).
	ExemptPaths []string `mapstructure:"exempt_paths"`

	// ExemptMethods skip admission entirely (e.g. OPTIONS).
	ExemptMethods []string `mapstructure:"exempt_methods"`

	// EndpointMultipliers scale the endpoint-tier cap per path prefix;
	// the longest matching prefix wins. Values below 1 tighten, above 1
	// loosen.
	EndpointMultipliers map[string]float64 `mapstructure:"endpoint_multipliers"`

	// DDoSCountThreshold: a rejected key whose window count exceeds this
	// absolute value is flagged as a DDoS suspect (default 300).
	DDoSCountThreshold int64 `mapstructure:"ddos_count_threshold"`

	// StressedScale and CriticalScale shrink all caps under load.
	StressedScale float64 `mapstructure:"stressed_scale"`
	CriticalScale float64 `mapstructure:"critical_scale"`
}

// DefaultConfig returns the admission defaults.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Window:  time.Minute,
		Caps: TierCaps{
			Global:    1000,
			IP:        100,
			User:      200,
			Anonymous: 60,
			Endpoint:  300,
		},
		ExemptPaths:   []string{"/health", "/ping", "/metrics"},
		ExemptMethods: []string{"OPTIONS"},
		EndpointMultipliers: map[string]float64{
			"/api/auth":   0.4,
			"/api/orders": 0.8,
			"/health":     5.0,
		},
		DDoSCountThreshold: 300,
		StressedScale:      0.7,
		CriticalScale:      0.5,
	}
}

// Validate checks the configuration and fills gaps.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Caps.Global <= 0 || c.Caps.IP <= 0 || c.Caps.User <= 0 || c.Caps.Anonymous <= 0 || c.Caps.Endpoint <= 0 {
		return fmt.Errorf("admission tier caps must all be positive, got %+v", c.Caps)
	}
	if c.DDoSCountThreshold <= 0 {
		c.DDoSCountThreshold = 300
	}
	if c.StressedScale <= 0 || c.StressedScale > 1 {
		c.StressedScale = 0.7
	}
	if c.CriticalScale <= 0 || c.CriticalScale > 1 {
		c.CriticalScale = 0.5
	}
	for prefix, m := range c.EndpointMultipliers {
		if m <= 0 {
			return fmt.Errorf("endpoint multiplier for %q must be positive, got %v", prefix, m)
		}
	}
	return nil
}

// multiplierFor resolves the endpoint multiplier by longest prefix.
func (c *Config) multiplierFor(path string) float64 {
	best := 1.0
	bestLen := -1
	for prefix, m := range c.EndpointMultipliers {
		if len(prefix) > bestLen && strings.HasPrefix(path, prefix) {
			best = m
			bestLen = len(prefix)
		}
	}
	return best
}
