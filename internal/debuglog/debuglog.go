// Package debuglog provides opt-in structured logging of the compiler's
// pipeline stages. It is silent unless TUBULAR_DEBUG is set, and it only
// ever writes to stderr — it has no influence on the WAT emitted to
// stdout or on the CLI's argument contract.
package debuglog

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Logger wraps a zap.Logger with the current invocation's correlation id
// already attached, so interleaved log lines from separate runs (e.g. in a
// test suite exercising the CLI repeatedly) can be told apart.
type Logger struct {
	z       *zap.Logger
	enabled bool
}

// New builds a Logger for one compiler invocation. When TUBULAR_DEBUG is
// unset, the returned Logger is a cheap no-op.
func New() *Logger {
	if os.Getenv("TUBULAR_DEBUG") == "" {
		return &Logger{enabled: false}
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	base, err := cfg.Build()
	if err != nil {
		return &Logger{enabled: false}
	}

	id := uuid.New().String()
	return &Logger{z: base.With(zap.String("run", id)), enabled: true}
}

// Stage logs entry into a named pipeline stage (the compiler logs parse and
// codegen steps) along with arbitrary structured fields describing it.
func (l *Logger) Stage(name string, fields ...zap.Field) {
	if !l.enabled {
		return
	}
	l.z.Debug(name, fields...)
}

// Sync flushes any buffered log entries; callers should defer it from main.
func (l *Logger) Sync() {
	if l.enabled {
		_ = l.z.Sync()
	}
}
