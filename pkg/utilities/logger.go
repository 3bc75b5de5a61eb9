package utilities

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level string `env:"LOG_LEVEL"`
	Dev   bool   `env:"LOG_DEV"`
	// File, when set, adds a daily rotated JSON log next to stdout.
	File       string `env:"LOG_FILE"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"7"`
}

// ConfigFromEnv reads the LOG_* variables. Malformed values fall back to
// defaults so logging is always available.
func ConfigFromEnv() Config {
	cfg := Config{MaxAgeDays: 7}
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "logger config: %v\n", err)
	}
	if cfg.Level == "" {
		cfg.Level = "info"
		if cfg.Dev {
			cfg.Level = "debug"
		}
	}
	return cfg
}

func level(l string) zapcore.Level {
	if l == "warning" {
		return zapcore.WarnLevel
	}
	lvl, err := zapcore.ParseLevel(l)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Init builds the process logger: console output in dev, ISO8601 JSON on
// stdout otherwise, teed into a rotated file when File is set.
func Init(cfg Config) (*zap.Logger, error) {
	lvl := level(cfg.Level)
	if cfg.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)
	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl)}

	if cfg.File != "" {
		w, err := rotatingWriter(cfg.File, cfg.MaxAgeDays)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(w), lvl))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func rotatingWriter(path string, maxAgeDays int) (*rotatelogs.RotateLogs, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = 7
	}
	w, err := rotatelogs.New(
		path+".%Y%m%d",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(time.Duration(maxAgeDays)*24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("rotatelogs: %w", err)
	}
	return w, nil
}
