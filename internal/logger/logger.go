// Package logger provides structured logging for hotload using zap.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dbsmedya/hotload/internal/config"
)

// Logger is a zap.SugaredLogger that carries hotload context fields.
// Loggers derived with the With* methods share the output file of their
// parent; Close it once through any of them.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
	file *os.File
}

// New creates a Logger from the logging section of the configuration.
// Output is "stdout", "stderr" or a file path opened for appending.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	sink, file, err := openSink(cfg.Output)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, parseLevel(cfg.Level))
	base := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{SugaredLogger: base.Sugar(), base: base, file: file}, nil
}

// NewDefault logs text at info level to stdout.
func NewDefault() *Logger {
	l, _ := New(&config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"})
	return l
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	base := zap.NewNop()
	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

// parseLevel maps a configured level name; anything unknown logs at info.
func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil || level == "" {
		return zapcore.InfoLevel
	}
	return l
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	ec.FunctionKey = zapcore.OmitKey

	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// openSink returns the writer for output and, for a file path, the file the
// logger owns.
func openSink(output string) (zapcore.WriteSyncer, *os.File, error) {
	switch output {
	case "stdout", "":
		return zapcore.Lock(os.Stdout), nil, nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil, nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output %s: %w", output, err)
	}
	return zapcore.Lock(f), f, nil
}

func (l *Logger) with(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...), base: l.base, file: l.file}
}

// WithSession tags entries with the configured session name.
func (l *Logger) WithSession(name string) *Logger {
	return l.with("session", name)
}

// WithPass tags entries with the pass ID.
func (l *Logger) WithPass(passID string) *Logger {
	return l.with("pass", passID)
}

// WithRoot tags entries with the static root being traversed.
func (l *Logger) WithRoot(root string) *Logger {
	return l.with("root", root)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// Close flushes buffered entries and closes the output file. Standard
// streams stay open.
func (l *Logger) Close() error {
	if l.file == nil {
		return l.base.Sync()
	}
	if err := l.base.Sync(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
