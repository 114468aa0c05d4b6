package health

import "time"

// Config tunes the system health sampler.
type Config struct {
	// SampleInterval is the measurement cadence (default 10s).
	SampleInterval time.Duration `mapstructure:"sample_interval"`

	// TrimInterval is how often old samples are dropped (default 60s).
	TrimInterval time.Duration `mapstructure:"trim_interval"`

	// HistorySize bounds the rolling window (default 60 samples).
	HistorySize int `mapstructure:"history_size"`

	// MaxSampleAge is the hard age cutoff for history (default 1h).
	MaxSampleAge time.Duration `mapstructure:"max_sample_age"`

	// StressedCPUPercent / StressedMemoryPercent mark the aggressive
	// threshold (default 80).
	StressedCPUPercent    float64 `mapstructure:"stressed_cpu_percent"`
	StressedMemoryPercent float64 `mapstructure:"stressed_memory_percent"`

	// CriticalCPUPercent / CriticalMemoryPercent mark the strict
	// threshold (default 90).
	CriticalCPUPercent    float64 `mapstructure:"critical_cpu_percent"`
	CriticalMemoryPercent float64 `mapstructure:"critical_memory_percent"`
}

// DefaultConfig returns the sampler defaults.
func DefaultConfig() Config {
	return Config{
		SampleInterval:        10 * time.Second,
		TrimInterval:          60 * time.Second,
		HistorySize:           60,
		MaxSampleAge:          time.Hour,
		StressedCPUPercent:    80,
		StressedMemoryPercent: 80,
		CriticalCPUPercent:    90,
		CriticalMemoryPercent: 90,
	}
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.SampleInterval <= 0 {
		c.SampleInterval = def.SampleInterval
	}
	if c.TrimInterval <= 0 {
		c.TrimInterval = def.TrimInterval
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	if c.MaxSampleAge <= 0 {
		c.MaxSampleAge = def.MaxSampleAge
	}
	if c.StressedCPUPercent <= 0 {
		c.StressedCPUPercent = def.StressedCPUPercent
	}
	if c.StressedMemoryPercent <= 0 {
		c.StressedMemoryPercent = def.StressedMemoryPercent
	}
	if c.CriticalCPUPercent <= 0 {
		c.CriticalCPUPercent = def.CriticalCPUPercent
	}
	if c.CriticalMemoryPercent <= 0 {
		c.CriticalMemoryPercent = def.CriticalMemoryPercent
	}
}
