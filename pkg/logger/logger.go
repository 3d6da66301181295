package logger

import (
	"fmt"
	"os"

	"exam_prep_backend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is a no-op logger until InitLogger runs, so packages can log from tests.
var Log = zap.NewNop()

var level = zap.NewAtomicLevelAt(zap.InfoLevel)

// ResolveLevel parses the configured level. An empty level follows the
// server mode: debug in debug mode, info otherwise.
func ResolveLevel(cfg config.LoggingConfig, mode string) (zapcore.Level, error) {
	if cfg.Level == "" {
		if mode == "debug" {
			return zap.DebugLevel, nil
		}
		return zap.InfoLevel, nil
	}
	l, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.InfoLevel, fmt.Errorf("logging.level: %w", err)
	}
	return l, nil
}

// New builds a logger writing JSON to a rotating file and, when enabled,
// human readable lines to stdout. Both cores share the atomic level so
// SetLevel affects them together.
func New(cfg config.LoggingConfig, mode string, atom zap.AtomicLevel) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var cores []zapcore.Core
	if cfg.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), fileWriter, atom))
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), atom))
	}
	if len(cores) == 0 {
		return zap.NewNop()
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
	if mode == "debug" {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

func InitLogger(cfg *config.Config) error {
	l, err := ResolveLevel(cfg.Logging, cfg.Server.Mode)
	if err != nil {
		return err
	}
	level.SetLevel(l)
	Log = New(cfg.Logging, cfg.Server.Mode, level)
	return nil
}

// SetLevel changes the level of the global logger in place; used on config
// reload. An invalid level leaves the current one untouched.
func SetLevel(cfg *config.Config) error {
	l, err := ResolveLevel(cfg.Logging, cfg.Server.Mode)
	if err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}
