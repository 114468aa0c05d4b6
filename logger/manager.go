package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns one zap logger per module, created lazily.
type Manager struct {
	baseConfig ManagerConfig
	loggers    map[string]*CtxZapLogger
	writers    []*lumberjack.Logger
	mu         sync.RWMutex
}

var (
	globalManager *Manager
	managerOnce   sync.Once
	managerMu     sync.RWMutex
)

// NewManager creates an independent Manager instance. Zero fields in cfg
// are filled with defaults.
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		baseConfig: cfg,
		loggers:    make(map[string]*CtxZapLogger),
	}
}

// InitManager initializes the global manager. Safe to call more than
// once; only the first call takes effect.
func InitManager(cfg ManagerConfig) {
	managerOnce.Do(func() {
		managerMu.Lock()
		globalManager = NewManager(cfg)
		managerMu.Unlock()
	})
}

// GetLogger returns the module logger from the global manager,
// initializing the manager with defaults when needed.
func GetLogger(module string) *CtxZapLogger {
	managerMu.RLock()
	m := globalManager
	managerMu.RUnlock()
	if m == nil {
		InitManager(DefaultConfig())
		managerMu.RLock()
		m = globalManager
		managerMu.RUnlock()
	}
	return m.GetLogger(module)
}

// GetLogger returns the CtxZapLogger for a module, creating it on first
// use (double-checked under the write lock).
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, exists := m.loggers[module]; exists {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, exists := m.loggers[module]; exists {
		return l
	}

	l := m.buildLogger(module)
	m.loggers[module] = l
	return l
}

// Close flushes and closes every file writer.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.loggers {
		_ = l.Sync()
	}
	for _, w := range m.writers {
		_ = w.Close()
	}
	m.writers = nil
	return nil
}

func (m *Manager) buildLogger(module string) *CtxZapLogger {
	level := zapcore.InfoLevel
	_ = level.Set(m.baseConfig.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	var encoder zapcore.Encoder
	if m.baseConfig.Encoding == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var cores []zapcore.Core
	if m.baseConfig.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}
	if m.baseConfig.EnableFile {
		w := &lumberjack.Logger{
			Filename:   filepath.Join(m.baseConfig.BaseLogDir, module+".log"),
			MaxSize:    m.baseConfig.MaxSize,
			MaxBackups: m.baseConfig.MaxBackups,
			MaxAge:     m.baseConfig.MaxAge,
			Compress:   m.baseConfig.Compress,
		}
		m.writers = append(m.writers, w)
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(w), level))
	}
	if len(cores) == 0 {
		cores = append(cores, zapcore.NewNopCore())
	}

	opts := []zap.Option{}
	if m.baseConfig.EnableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	fields := []zap.Field{zap.String("module", module)}
	if m.baseConfig.AppName != "" {
		fields = append(fields, zap.String("app", m.baseConfig.AppName))
	}

	base := zap.New(zapcore.NewTee(cores...), opts...).With(fields...)
	return &CtxZapLogger{
		base:       base,
		module:     module,
		traceIDKey: m.baseConfig.TraceIDKey,
	}
}

// NewTestLogger returns a logger suitable for tests (console, debug).
func NewTestLogger(module string) *CtxZapLogger {
	m := NewManager(ManagerConfig{Level: "debug", EnableConsole: true})
	return m.GetLogger(module)
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger(module string) *CtxZapLogger {
	return &CtxZapLogger{base: zap.NewNop(), module: module, traceIDKey: "trace_id"}
}
