// Package logger builds the gateway's zap logger from configuration.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for the given level and format. The returned
// AtomicLevel controls the logger's verbosity after construction, which is
// how config reloads change the level of a running process.
//
// Format "json" selects zap's production encoder, anything else the
// human-readable development encoder. Sampling is off in both, so repeated
// completion audit lines are never dropped under load.
func New(level, format string) (*zap.Logger, zap.AtomicLevel, error) {
	cfg, err := newConfig(level, format)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("build logger: %w", err)
	}
	return logger, cfg.Level, nil
}

func newConfig(level, format string) (zap.Config, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return zap.Config{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil
	return cfg, nil
}
