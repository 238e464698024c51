// Package logger holds the process-wide structured logger.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger atomic.Pointer[zap.Logger]
	logFile      *lumberjack.Logger
	mu           sync.Mutex
)

// Options configures Setup.
type Options struct {
	File       string    // log file path; empty disables the file sink
	Level      string    // debug, info, warn, error (default info)
	Format     string    // console or json (default console)
	MaxSizeMB  int       // rotate after this many megabytes (default 50)
	MaxBackups int       // rotated files to keep
	Console    io.Writer // optional second sink, e.g. stderr for --verbose
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	return Setup(Options{File: logPath})
}

// Setup replaces the global logger. Calling it again closes the previous
// log file first.
func Setup(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	var cores []zapcore.Core
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		logFile = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(encoder(opts.Format), zapcore.AddSync(logFile), level))
	}
	if opts.Console != nil {
		cores = append(cores, zapcore.NewCore(encoder(opts.Format), zapcore.Lock(zapcore.AddSync(opts.Console)), level))
	}

	if len(cores) == 0 {
		globalLogger.Store(nil)
		return nil
	}
	globalLogger.Store(zap.New(zapcore.NewTee(cores...)).Named("uiscope"))
	return nil
}

func encoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	if format == "json" {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " "
	return zapcore.NewConsoleEncoder(cfg)
}

// L returns the global logger, or a no-op logger before Setup.
func L() *zap.Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if l := globalLogger.Load(); l != nil {
		_ = l.Sync()
	}
	globalLogger.Store(nil)
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	L().Sugar().Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	L().Sugar().Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	L().Sugar().Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	L().Sugar().Warnf(format, v...)
}

// GetWriter returns the underlying file writer for use by drivers.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
