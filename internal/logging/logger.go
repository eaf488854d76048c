// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options tune the logger beyond the development/production split.
type Options struct {
	Development bool
	// Level overrides the default level ("debug", "info", "warn", "error").
	Level string
}

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	return NewWithOptions(Options{Development: development})
}

// NewWithOptions builds a zap.Logger from opts.
func NewWithOptions(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
	}
	cfg.EncoderConfig.TimeKey = "ts"
	if level := strings.TrimSpace(opts.Level); level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	logger, err := cfg.Build()
	if err != nil {
		if opts.Development {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// ForTarget scopes logger to one institution.
func ForTarget(logger *zap.Logger, name, website string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(zap.String("school", name), zap.String("website", website))
}
