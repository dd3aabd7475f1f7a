// Package logger owns the process-wide zap logger shared by the resolver,
// intake and seed binaries. Its level can be changed while running through
// the resolver's /log/level endpoint.
package logger

import (
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global *zap.Logger
	level  = zap.NewAtomicLevel()
	once   sync.Once
)

// Init builds the global logger once. level is any zap level name; format
// "console" selects colored development output and anything else JSON.
// Later calls are no-ops.
func Init(lvl, format string) error {
	var initErr error
	once.Do(func() {
		if err := level.UnmarshalText([]byte(lvl)); err != nil {
			initErr = fmt.Errorf("parse log level %q: %w", lvl, err)
			return
		}
		l, err := newConfig(format).Build(zap.AddCallerSkip(1))
		if err != nil {
			initErr = fmt.Errorf("build logger: %w", err)
			return
		}
		global = l
	})
	return initErr
}

func newConfig(format string) zap.Config {
	if format == "console" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Level = level
		return cfg
	}
	cfg := zap.NewProductionConfig()
	// Every order and BOM batch is logged once; none may be sampled away.
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = level
	return cfg
}

// SetLevel parses lvl and applies it to every logger derived from L.
func SetLevel(lvl string) error {
	return level.UnmarshalText([]byte(lvl))
}

// GetLevel reports the active level.
func GetLevel() zapcore.Level {
	return level.Level()
}

// L returns the global logger and panics before Init.
func L() *zap.Logger {
	if global == nil {
		panic("logger: L called before Init")
	}
	return global
}

// Named returns a child logger tagged with a component name such as
// "resolver" or "intake".
func Named(component string) *zap.Logger {
	return L().Named(component)
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// LevelHandler serves the level as JSON: GET reads it, PUT with
// {"level":"debug"} changes it.
func LevelHandler() http.Handler {
	return level
}

// Sync flushes buffered entries. It is safe before Init.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
