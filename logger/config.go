package logger

import "strings"

// ManagerConfig is the shared configuration for every module logger.
type ManagerConfig struct {
	Level         string `mapstructure:"level"`           // debug, info, warn, error
	AppName       string `mapstructure:"app_name"`        // injected into every record
	Encoding      string `mapstructure:"encoding"`        // json or console
	EnableConsole bool   `mapstructure:"enable_console"`  // write to stdout
	EnableFile    bool   `mapstructure:"enable_file"`     // write to BaseLogDir
	BaseLogDir    string `mapstructure:"base_log_dir"`    // log root directory (default logs/)
	MaxSize       int    `mapstructure:"max_size"`        // single file size limit (MB)
	MaxBackups    int    `mapstructure:"max_backups"`     // rotated files to keep
	MaxAge        int    `mapstructure:"max_age"`         // retention in days
	Compress      bool   `mapstructure:"compress"`        // gzip rotated files
	EnableCaller  bool   `mapstructure:"enable_caller"`   //
	TraceIDKey    string `mapstructure:"trace_id_key"`    // field name for correlation ids (default trace_id)
}

// ApplyDefaults fills zero fields with sane defaults.
func (c *ManagerConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Encoding == "" {
		c.Encoding = "console"
	}
	if c.BaseLogDir == "" {
		c.BaseLogDir = "logs"
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 100
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 10
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 30
	}
	if c.TraceIDKey == "" {
		c.TraceIDKey = "trace_id"
	}
	if !c.EnableConsole && !c.EnableFile {
		c.EnableConsole = true
	}
	c.Level = strings.ToLower(c.Level)
}

// DefaultConfig returns the configuration used when nothing is provided.
func DefaultConfig() ManagerConfig {
	cfg := ManagerConfig{}
	cfg.ApplyDefaults()
	return cfg
}
