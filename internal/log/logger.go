// SPDX-License-Identifier: MIT
package log

import (
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func fromZapLevel(l zapcore.Level) LogLevel {
	switch {
	case l <= zapcore.DebugLevel:
		return LevelDebug
	case l == zapcore.InfoLevel:
		return LevelInfo
	case l == zapcore.WarnLevel:
		return LevelWarn
	case l == zapcore.ErrorLevel:
		return LevelError
	default:
		return LevelFatal
	}
}

// Sink receives log entries at Info level and above, e.g. the UI log panel.
// Implementations must not block.
type Sink func(level, message string)

// --- Global Logger State ---

var (
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sink   atomic.Pointer[Sink]
	logger = newLogger()
)

func newLogger() *zap.SugaredLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core, zap.Hooks(forwardToSink)).Sugar()
}

// forwardToSink runs after the entry has been written to stderr.
func forwardToSink(e zapcore.Entry) error {
	if e.Level < zapcore.InfoLevel {
		return nil
	}
	if s := sink.Load(); s != nil {
		(*s)(fromZapLevel(e.Level).String(), e.Message)
	}
	return nil
}

// SetSink registers fn to receive Info-and-above entries. Passing nil removes it.
func SetSink(fn Sink) {
	if fn == nil {
		sink.Store(nil)
		return
	}
	sink.Store(&fn)
}

// SetLevel sets the global logging level atomically.
func SetLevel(l LogLevel) {
	level.SetLevel(l.zapLevel())
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return fromZapLevel(level.Level())
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	_ = logger.Sync()
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { logger.Debugf(format, v...) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { logger.Infof(format, v...) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { logger.Warnf(format, v...) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { logger.Errorf(format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
func Fatalf(format string, v ...any) { logger.Fatalf(format, v...) }

// --- Functions without formatting (convenience) ---

func Debug(v ...any) { logger.Debug(v...) }
func Info(v ...any)  { logger.Info(v...) }
func Warn(v ...any)  { logger.Warn(v...) }
func Error(v ...any) { logger.Error(v...) }
func Fatal(v ...any) { logger.Fatal(v...) }
