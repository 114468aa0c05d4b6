// Package redis owns the shared Redis client used by the
// sliding-window counter store.
package redis

import (
	"fmt"
	"time"
)

// Config is the Redis connection configuration.
type Config struct {
	// Addr is the host:port of the server.
	Addr string `mapstructure:"addr"`

	// Password is optional.
	Password string `mapstructure:"password"`

	// DB selects the database number (0-15).
	DB int `mapstructure:"db"`

	// PoolSize sizes the connection pool (default 10).
	PoolSize int `mapstructure:"pool_size"`

	// MinIdleConns keeps warm connections (default 2).
	MinIdleConns int `mapstructure:"min_idle_conns"`

	// DialTimeout bounds connection setup (default 5s).
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// ReadTimeout bounds reads (default 3s).
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout bounds writes (default 3s).
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns the connection defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Validate checks the configuration and fills gaps.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.DB < 0 || c.DB > 15 {
		return fmt.Errorf("redis db must be between 0 and 15, got %d", c.DB)
	}
	def := DefaultConfig()
	if c.PoolSize <= 0 {
		c.PoolSize = def.PoolSize
	}
	if c.MinIdleConns < 0 {
		c.MinIdleConns = def.MinIdleConns
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return nil
}
