package logx

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the main logger instance. It wraps a zap core so every
// call site keeps the Fields based API.
type Logger struct {
	mu       sync.Mutex
	level    Level
	atomic   zap.AtomicLevel
	zap      *zap.Logger
	exitFunc func(int)
}

// NewLogger creates a new logger with the given config
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	atomic := zap.NewAtomicLevelAt(config.Level.zapLevel())
	core := zapcore.NewCore(newEncoder(config), zapcore.AddSync(writerOrStdout(config.Output)), atomic)
	return newLogger(core, config.Level, atomic, config.EnableCaller)
}

// NewLoggerWithCore builds a logger over an existing zap core.
// Tests use it with zaptest/observer.
func NewLoggerWithCore(core zapcore.Core) *Logger {
	atomic := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return newLogger(core, LevelDebug, atomic, false)
}

func newLogger(core zapcore.Core, level Level, atomic zap.AtomicLevel, caller bool) *Logger {
	opts := []zap.Option{zap.WithFatalHook(zapcore.WriteThenNoop)}
	if caller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}
	return &Logger{
		level:    level,
		atomic:   atomic,
		zap:      zap.New(core, opts...),
		exitFunc: os.Exit,
	}
}

func newEncoder(config *Config) zapcore.Encoder {
	if config.Format == FormatJSON {
		enc := zap.NewProductionEncoderConfig()
		enc.TimeKey = "timestamp"
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(enc)
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	if config.EnableColors {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(enc)
}

func writerOrStdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.atomic.SetLevel(level.zapLevel())
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Zap exposes the underlying zap logger
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func (l *Logger) log(level Level, msg string, fields Fields, err error) {
	if level == LevelOff {
		return
	}
	ce := l.zap.Check(level.zapLevel(), msg)
	if ce == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields)+1)
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	ce.Write(zf...)
}

// WithField creates a new entry with a field
func (l *Logger) WithField(key string, value interface{}) *Entry {
	return newEntry(l).WithField(key, value)
}

// WithFields creates a new entry with fields
func (l *Logger) WithFields(fields Fields) *Entry {
	return newEntry(l).WithFields(fields)
}

// WithError creates a new entry with an error
func (l *Logger) WithError(err error) *Entry {
	return newEntry(l).WithError(err)
}

func (l *Logger) exit(code int) {
	_ = l.zap.Sync()
	l.exitFunc(code)
}
