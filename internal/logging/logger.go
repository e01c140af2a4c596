package logging

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logger is read by link goroutines while commands re-initialize it.
var logger atomic.Pointer[zap.Logger]

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, Options.DefaultLevel applies.
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "POWERROAM_LOG_LEVEL"

// maxDumpBytes caps hex and ASCII dumps in log fields.
const maxDumpBytes = 256

// Options configures the global logger.
type Options struct {
	// Level is one of debug, info, warn or error. Empty falls back to
	// POWERROAM_LOG_LEVEL and then to DefaultLevel.
	Level string

	// DefaultLevel applies when neither Level nor the environment set one.
	// Empty means silent.
	DefaultLevel string

	// Console receives human readable output. Nil means os.Stderr.
	Console io.Writer

	// File, when set, receives a copy of every entry with size-based rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Initialize creates a new logger with the specified level.
// If level is empty, it checks POWERROAM_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	return InitializeWithOptions(Options{Level: level})
}

// InitializeWithOptions builds the global logger. Console output goes to
// stderr so that command output on stdout stays machine readable.
func InitializeWithOptions(opts Options) error {
	level := opts.Level
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		level = opts.DefaultLevel
	}
	if level == "" {
		logger.Store(zap.NewNop())
		return nil
	}

	zapLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	var console zapcore.WriteSyncer = os.Stderr
	consoleCfg := encoderCfg
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if opts.Console != nil {
		console = zapcore.AddSync(opts.Console)
		consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(console), zapLevel),
	}

	if opts.File != "" {
		// Rotated file gets plain JSON without color codes
		fileCfg := encoderCfg
		fileCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(lj), zapLevel))
	}

	logger.Store(zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)))
	return nil
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (expected debug, info, warn or error)", level)
	}
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	// Silent until initialized so library use never prints
	nop := zap.NewNop()
	if !logger.CompareAndSwap(nil, nop) {
		if l := logger.Load(); l != nil {
			return l
		}
	}
	return nop
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogNotification logs one raw notification as received from a link.
func LogNotification(source string, data []byte) {
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	Debug("Notification received",
		zap.String("source", source),
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
	)
}

// LogWrite logs a frame written to the device.
func LogWrite(source string, frame []byte) {
	Info("Frame written",
		zap.String("source", source),
		zap.Int("length", len(frame)),
		zap.String("hex", HexString(frame)),
	)
}

// LogRawBytes logs raw bytes (useful for debugging protocol issues)
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

// HexString renders data as space separated uppercase hex pairs, the way
// payloads are shown in warnings: "5A A5 C0 A1".
func HexString(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > maxDumpBytes {
		return hex.EncodeToString(data[:maxDumpBytes]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > maxDumpBytes {
		data = data[:maxDumpBytes]
	}

	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Sync flushes any buffered log entries
func Sync() {
	if l := logger.Load(); l != nil {
		_ = l.Sync()
	}
}
