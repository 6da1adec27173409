// Package logging builds the zap loggers shared by the CLI and the HTTP server.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base *zap.Logger

// Init initializes the package-level logger. Output goes to stderr so that
// commands printing JSON on stdout stay machine readable.
func Init(debug bool, level string) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		if level != "" {
			lvl, err := zapcore.ParseLevel(level)
			if err != nil {
				return fmt.Errorf("parse log level %q: %w", level, err)
			}
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}
	base = l
	return nil
}

// Sugared returns the sugared logger, falling back to a production logger
// when Init was never called.
func Sugared() *zap.SugaredLogger {
	if base == nil {
		base, _ = zap.NewProduction()
	}
	return base.Sugar()
}

// Sync flushes any buffered log entries.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
