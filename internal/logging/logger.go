// internal/logging/logger.go
//
// Structured logging for brandguard. Logs always go to a rotated file
// under .brandguard/logs/ so failures stay inspectable after the TUI
// exits. While the TUI owns the terminal nothing may write to stdout, so
// the file-only constructor is the one the TUI uses; the console tee is
// for the plain CLI subcommands.

package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "brandguard.log"

// New creates a logger that tees JSON records to the rotated log file and
// human-readable output to stdout.
func New(logsDir string) (*zap.Logger, error) {
	fileCore, err := fileCore(logsDir)
	if err != nil {
		return nil, err
	}
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stdout),
		zap.InfoLevel,
	)
	return zap.New(zapcore.NewTee(fileCore, consoleCore)), nil
}

// NewFileOnly creates a logger that writes only to the rotated log file.
// The TUI uses this so log output never corrupts the rendered screen.
func NewFileOnly(logsDir string) (*zap.Logger, error) {
	core, err := fileCore(logsDir)
	if err != nil {
		return nil, err
	}
	return zap.New(core), nil
}

func fileCore(logsDir string) (zapcore.Core, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logsDir, logFileName),
		MaxSize:    10, // Megabytes
		MaxBackups: 5,
		MaxAge:     30, // Days
		Compress:   true,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(rotator),
		zap.InfoLevel,
	), nil
}
