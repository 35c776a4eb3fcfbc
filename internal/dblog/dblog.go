// Package dblog provides the structured logger shared by every core
// package. It is a thin wrapper over zap so call sites stay short while
// still emitting leveled, structured fields (page numbers, keys, plans).
package dblog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.Mutex
	logger *zap.SugaredLogger
)

// Init installs the process-wide logger at the given level ("debug",
// "info", "warn", "error"). Safe to call multiple times; the last call
// wins. Unknown levels fall back to "info".
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level.SetLevel(zap.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	logger = l.Sugar()
}

// L returns the shared logger, initializing a no-op logger on first use
// if Init was never called.
func L() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return logger
}

// Sync flushes any buffered log entries; call on clean shutdown.
func Sync() {
	_ = L().Sync()
}
