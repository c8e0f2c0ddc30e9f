package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Config selects the log encoding and level.
type Config struct {
	// Mode is "production" (JSON), "development" (console), or "nop".
	Mode string `yaml:"mode" validate:"oneof=production prod development dev nop"`

	// Level is a zap level name such as "info" or "debug".
	Level string `yaml:"level"`
}

// DefaultConfig logs JSON warnings and errors.
func DefaultConfig() Config {
	return Config{Mode: "production", Level: "warn"}
}

// New builds a logger from cfg. Output goes to stderr so command output
// on stdout stays clean.
func New(cfg Config) (*zap.Logger, error) {
	var zc zap.Config
	switch strings.ToLower(cfg.Mode) {
	case "nop":
		return zap.NewNop(), nil
	case "prod", "production", "":
		zc = zap.NewProductionConfig()
	case "dev", "development":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log mode %q", cfg.Mode)
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = level
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
