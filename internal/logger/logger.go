package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity levels.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config value such as "debug" to a Level.
// Unknown values fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the interface for all logger implementations.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

type sink struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

type writerLogger struct {
	out    *sink
	level  Level
	fields []Field
}

// New creates a logger writing to w.
func New(w io.Writer, level Level) Logger {
	return &writerLogger{out: &sink{w: w}, level: level}
}

// NewStdout creates a logger that writes to stdout.
func NewStdout(level Level) Logger {
	return New(os.Stdout, level)
}

// FileLogger logs to an append-only file and must be closed.
type FileLogger struct {
	writerLogger
}

// NewFile opens (or creates) path for appending.
func NewFile(path string, level Level) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &FileLogger{
		writerLogger: writerLogger{
			out:   &sink{w: file, c: file},
			level: level,
		},
	}, nil
}

// Close closes the underlying file.
func (l *FileLogger) Close() error {
	return l.out.c.Close()
}

func (l *writerLogger) log(level Level, msg string, fields ...Field) {
	if level < l.level {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", time.Now().Format("2006-01-02 15:04:05"), level.String(), msg)
	for _, f := range l.fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	b.WriteByte('\n')

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	io.WriteString(l.out.w, b.String())
}

func (l *writerLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields...) }
func (l *writerLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields...) }
func (l *writerLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields...) }
func (l *writerLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields...) }

func (l *writerLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &writerLogger{out: l.out, level: l.level, fields: merged}
}

type teeLogger []Logger

// Tee fans every entry out to all loggers.
func Tee(loggers ...Logger) Logger {
	return teeLogger(loggers)
}

func (t teeLogger) Debug(msg string, fields ...Field) {
	for _, l := range t {
		l.Debug(msg, fields...)
	}
}

func (t teeLogger) Info(msg string, fields ...Field) {
	for _, l := range t {
		l.Info(msg, fields...)
	}
}

func (t teeLogger) Warn(msg string, fields ...Field) {
	for _, l := range t {
		l.Warn(msg, fields...)
	}
}

func (t teeLogger) Error(msg string, fields ...Field) {
	for _, l := range t {
		l.Error(msg, fields...)
	}
}

func (t teeLogger) WithFields(fields ...Field) Logger {
	out := make(teeLogger, len(t))
	for i, l := range t {
		out[i] = l.WithFields(fields...)
	}
	return out
}

type nopLogger struct{}

// Nop discards everything.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field)         {}
func (nopLogger) Info(string, ...Field)          {}
func (nopLogger) Warn(string, ...Field)          {}
func (nopLogger) Error(string, ...Field)         {}
func (n nopLogger) WithFields(...Field) Logger { return n }
