package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the zap logger every binary uses. Level and encoding come
// from LoggerConfig; everything else follows zap's production preset.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch cfg.Encoding {
	case "", "json":
		zcfg.Encoding = "json"
	case "console":
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log encoding %q", cfg.Encoding)
	}

	return zcfg.Build()
}
