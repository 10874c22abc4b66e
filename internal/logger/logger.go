// Package logger builds the service zap logger and carries request-scoped
// loggers through context.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options tune the logger beyond what the environment implies.
type Options struct {
	// Level overrides the environment default: debug, info, warn, error.
	Level string
	// Service and Version are attached to every entry when set.
	Service string
	Version string
}

// NewLogger creates a zap logger for the given environment.
// prod writes sampled JSON; local, dev and docker write colored console
// output; test writes console output at warn and above.
func NewLogger(env string, opts Options) (*zap.Logger, error) {
	cfg, err := baseConfig(env)
	if err != nil {
		return nil, err
	}

	if lvl := strings.TrimSpace(opts.Level); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(strings.ToLower(lvl))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", lvl, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	var fields []zap.Field
	if opts.Service != "" {
		fields = append(fields, zap.String("service", opts.Service))
	}
	if opts.Version != "" {
		fields = append(fields, zap.String("version", opts.Version))
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel), zap.Fields(fields...))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

func baseConfig(env string) (zap.Config, error) {
	switch env {
	case "prod":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg, nil
	case "local", "dev", "docker":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg, nil
	case "test":
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		return cfg, nil
	default:
		return zap.Config{}, fmt.Errorf("unknown environment %q for logger", env)
	}
}
