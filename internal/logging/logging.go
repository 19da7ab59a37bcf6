// Package logging builds the process logger.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLevel  = "BLUEGENT_LOG"
	EnvFormat = "BLUEGENT_LOG_STYLE"
)

// Config selects level and encoding. Zero values fall back to Defaults.
type Config struct {
	Level  string // debug, info, warn or error
	Format string // console or json
}

// Defaults reads the environment, falling back to info/console.
func Defaults() Config {
	return Config{
		Level:  envOr(EnvLevel, "info"),
		Format: envOr(EnvFormat, "console"),
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// New returns a logger writing to stderr.
func New(cfg Config) (*zap.Logger, error) {
	def := Defaults()
	if cfg.Level == "" {
		cfg.Level = def.Level
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}

	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	var zc zap.Config
	switch strings.ToLower(cfg.Format) {
	case "console":
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zc = zap.NewProductionConfig()
		zc.Sampling = nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true

	return zc.Build()
}
