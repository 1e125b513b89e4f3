// Package log provides a structured logging system for relay services.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"
)

// Level is a record severity.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ParseLevel converts a level name to a Level. The empty string is InfoLevel.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// ComponentKey is the field set by Component.
const ComponentKey = "component"

// Fields holds a record's structured context keyed by field name.
type Fields map[string]interface{}

// Record is one formatted log line before it reaches an Output.
type Record struct {
	Level     Level
	Message   string
	Fields    Fields
	Timestamp time.Time
	Caller    string
}

// Logger is the leveled, structured logger passed through relay components.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that adds fields to every record.
	With(fields ...Field) Logger

	GetLevel() Level
}

// Formatter turns a record into bytes.
type Formatter interface {
	Format(r *Record) ([]byte, error)
}

// Output receives formatted records.
type Output interface {
	Write(r *Record, formatted []byte) error
	Close() error
}

// LoggerOption configures NewLogger.
type LoggerOption func(*sink)

// WithLevel sets the minimum level. The default is InfoLevel.
func WithLevel(level Level) LoggerOption {
	return func(s *sink) { s.level = level }
}

// WithFormatter sets the formatter. The default is JSONFormatter.
func WithFormatter(f Formatter) LoggerOption {
	return func(s *sink) { s.formatter = f }
}

// WithOutput adds an output. Without one, records go to stderr.
func WithOutput(o Output) LoggerOption {
	return func(s *sink) { s.outputs = append(s.outputs, o) }
}

// sink is the formatter and outputs shared by a logger and its children.
type sink struct {
	level     Level
	formatter Formatter
	outputs   []Output
}

func (s *sink) emit(r *Record) error {
	b, err := s.formatter.Format(r)
	if err != nil {
		return err
	}
	for _, o := range s.outputs {
		_ = o.Write(r, b)
	}
	return nil
}

type logger struct {
	sink *sink
	h    slog.Handler
}

// NewLogger builds a Logger from options.
func NewLogger(opts ...LoggerOption) Logger {
	s := &sink{level: InfoLevel, formatter: &JSONFormatter{}}
	for _, o := range opts {
		o(s)
	}
	if len(s.outputs) == 0 {
		s.outputs = []Output{NewConsoleOutput()}
	}
	return &logger{sink: s, h: &handler{sink: s}}
}

func (l *logger) log(level Level, msg string, fields []Field) {
	if level < l.sink.level {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), toSlogLevel(level), msg, pcs[0])
	for _, f := range fields {
		r.AddAttrs(slog.Any(f.Key, f.Value))
	}
	_ = l.h.Handle(context.Background(), r)
}

func (l *logger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *logger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *logger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *logger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

func (l *logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return &logger{sink: l.sink, h: l.h.WithAttrs(attrs)}
}

func (l *logger) GetLevel() Level { return l.sink.level }

