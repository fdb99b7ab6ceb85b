// Package logger wraps a process-wide zap logger.  Subsystems log
// through the package-level helpers so callers never carry a logger
// value around; Init is called once from main before anything else.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop()

// Init builds the global logger.  env selects the encoder: "prod"
// uses the JSON production config, anything else the development
// console config.  level accepts zap level names and falls back to
// info when empty or unknown.
func Init(env, level string) error {
	var cfg zap.Config
	if strings.EqualFold(env, "prod") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		if lvl, err := zapcore.ParseLevel(level); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	built, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	log = built
	return nil
}

// Sync flushes any buffered log entries.  Called from main on shutdown.
func Sync() {
	_ = log.Sync()
}

// Debug logs at debug level with structured fields.
func Debug(msg string, fields ...zap.Field) { log.Debug(msg, fields...) }

// Info logs at info level with structured fields.
func Info(msg string, fields ...zap.Field) { log.Info(msg, fields...) }

// Warn logs at warn level with structured fields.
func Warn(msg string, fields ...zap.Field) { log.Warn(msg, fields...) }

// Error logs at error level with structured fields.
func Error(msg string, fields ...zap.Field) { log.Error(msg, fields...) }
