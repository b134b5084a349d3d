package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes how the application logger should behave.
type Config struct {
	Level       string
	Format      string
	OutputPaths []string
	Rotation    RotationConfig
	Audit       AuditConfig
}

// RotationConfig applies to every file output in OutputPaths.
type RotationConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AuditConfig controls audit log output behaviour.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
	auditLogger   *slog.Logger
	cores         []*zap.Logger
	closers       []io.Closer
)

// Init configures the global logger instances. Calling Init again replaces the
// previous loggers after flushing them.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if err := syncLocked(); err != nil {
		return err
	}

	level := parseLevel(cfg.Level)
	core, err := buildCore(cfg.Format, cfg.OutputPaths, cfg.Rotation, level)
	if err != nil {
		return err
	}
	main := zap.New(core)
	cores = append(cores, main)
	defaultLogger = slog.New(zapslog.NewHandler(main.Core(), zapslog.WithCaller(true)))

	auditLogger = defaultLogger
	if cfg.Audit.Enabled {
		audit, err := buildAuditLogger(cfg.Audit)
		if err != nil {
			return err
		}
		auditLogger = audit
	}
	return nil
}

func buildCore(format string, outputs []string, rotation RotationConfig, level zapcore.Level) (zapcore.Core, error) {
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	syncers := make([]zapcore.WriteSyncer, 0, len(outputs))
	for _, out := range outputs {
		ws, err := openWriter(out, rotation)
		if err != nil {
			return nil, err
		}
		syncers = append(syncers, ws)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if strings.EqualFold(format, "text") || strings.EqualFold(format, "console") {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}
	return zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level), nil
}

func buildAuditLogger(cfg AuditConfig) (*slog.Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("audit log path cannot be empty when enabled")
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 7
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 30
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	closers = append(closers, writer)

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(writer),
		zapcore.InfoLevel,
	)
	audit := zap.New(core)
	cores = append(cores, audit)
	return slog.New(zapslog.NewHandler(audit.Core())), nil
}

func openWriter(path string, rotation RotationConfig) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(path) {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		writer := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAgeDays,
		}
		closers = append(closers, writer)
		return zapcore.AddSync(writer), nil
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// L returns the structured logger instance.
func L() *slog.Logger {
	mu.Lock()
	initialised := defaultLogger != nil
	mu.Unlock()
	if !initialised {
		_ = Init(Config{})
	}
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger
}

// Audit returns the audit logger.
func Audit() *slog.Logger {
	mu.Lock()
	audit := auditLogger
	mu.Unlock()
	if audit == nil {
		return L()
	}
	return audit
}

// Sync flushes buffered log entries and closes rotating files.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	return syncLocked()
}

func syncLocked() error {
	var err error
	for _, core := range cores {
		// stdout/stderr return EINVAL on some platforms; those are not real failures.
		if syncErr := core.Sync(); syncErr != nil && !isStdSyncError(syncErr) {
			err = errors.Join(err, syncErr)
		}
	}
	for _, closer := range closers {
		err = errors.Join(err, closer.Close())
	}
	cores = nil
	closers = nil
	return err
}

func isStdSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}

// Named returns a child logger with the provided component name.
func Named(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}
