// Package logging configures the JSONL log file in the app state dir.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ashwch/bumblebee/internal/appdirs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logFileName = "log.jsonl"

// Runtime bundles the configured logger and its open file handle.
type Runtime struct {
	Logger *zap.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the log file.
func (r Runtime) Close() error {
	if r.Logger != nil {
		_ = r.Logger.Sync()
	}
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New opens <state>/log.jsonl for appending and builds a JSON zap logger on it.
func New(level string) (Runtime, error) {
	if _, err := appdirs.EnsureStateDir(); err != nil {
		return Runtime{}, err
	}
	path, err := appdirs.StateFilePath(logFileName)
	if err != nil {
		return Runtime{}, err
	}
	return NewAt(path, level)
}

// NewAt is New with an explicit file path.
func NewAt(path string, level string) (Runtime, error) {
	if err := appdirs.EnsureParentDir(path); err != nil {
		return Runtime{}, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, fmt.Errorf("could not open log file: %w", err)
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return Runtime{}, fmt.Errorf("could not secure log file permissions: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(f), ParseLevel(level))

	return Runtime{Logger: zap.New(core), Path: path, closer: f}, nil
}

// ParseLevel maps a config level name to a zap level. Unknown names mean info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
