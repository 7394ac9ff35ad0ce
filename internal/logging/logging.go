// Package logging builds the zap loggers used by the commands.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	// Level is a zap level name, empty means info.
	Level string `yaml:"level"`
	// Development switches to the console encoder with colored levels.
	Development bool `yaml:"development"`
	// File additionally writes JSON lines to a rotated file when set.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

var (
	stdout zapcore.WriteSyncer = os.Stdout
	stderr zapcore.WriteSyncer = os.Stderr
)

func encoderConfig(development bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	if development {
		cfg = zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level.SetLevel(parsed)
	}

	var console zapcore.Encoder
	if cfg.Development {
		console = zapcore.NewConsoleEncoder(encoderConfig(true))
	} else {
		console = zapcore.NewJSONEncoder(encoderConfig(false))
	}
	cores := []zapcore.Core{
		zapcore.NewCore(console, zapcore.Lock(stdout), level),
	}

	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig(false)), zapcore.AddSync(file), level))
	}

	options := []zap.Option{zap.ErrorOutput(zapcore.Lock(stderr))}
	if cfg.Development {
		options = append(options, zap.Development(), zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), options...), nil
}

func NewDevLogger() *zap.Logger {
	logger, err := New(Config{Level: "debug", Development: true})
	if err != nil {
		panic(err)
	}
	return logger
}

func NewProdLogger() *zap.Logger {
	logger, err := New(Config{})
	if err != nil {
		panic(err)
	}
	return logger
}
