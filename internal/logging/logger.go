package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Format represents the output format for logs
type Format int

const (
	// FormatConsole is human-readable console output
	FormatConsole Format = iota
	// FormatJSON is structured JSON output
	FormatJSON
)

// String returns the name of the format
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "console"
}

// Level represents a logging level
type Level int

const (
	// DebugLevel is for debug messages
	DebugLevel Level = iota
	// InfoLevel is for informational messages
	InfoLevel
	// WarnLevel is for warning messages
	WarnLevel
	// ErrorLevel is for error messages
	ErrorLevel
)

// String returns the string representation of a Level
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
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

var levelColors = map[Level]*color.Color{
	DebugLevel: color.New(color.FgHiBlack),
	InfoLevel:  color.New(color.FgCyan),
	WarnLevel:  color.New(color.FgYellow),
	ErrorLevel: color.New(color.FgRed, color.Bold),
}

// Logger provides structured logging capabilities.
// Output goes to the diagnostic stream (stderr) unless redirected.
type Logger struct {
	mu     *sync.Mutex
	level  Level
	format Format
	output io.Writer
	color  bool
	fields []Field
}

// New creates a new Logger with the specified level and console format
func New(level Level) *Logger {
	return NewWithFormat(level, FormatConsole)
}

// NewWithFormat creates a new Logger with the specified level and format
func NewWithFormat(level Level, format Format) *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		level:  level,
		format: format,
		output: os.Stderr,
		color:  isTerminal(os.Stderr),
	}
}

// NewWithOutput creates a new Logger with the specified level and output writer
func NewWithOutput(level Level, output io.Writer) *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		level:  level,
		format: FormatConsole,
		output: output,
		color:  isTerminal(output),
	}
}

// SetLevel changes the logging level
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

// Level returns the current logging level
func (l *Logger) Level() Level {
	return l.level
}

// SetColor enables or disables colored level tags in console format
func (l *Logger) SetColor(enabled bool) {
	l.color = enabled
}

// SetFormat switches between console and JSON output
func (l *Logger) SetFormat(format Format) {
	l.format = format
}

// With returns a child logger that adds fields to every entry.
// The child shares the parent's output and lock.
func (l *Logger) With(fields ...Field) *Logger {
	child := *l
	child.fields = append(append([]Field(nil), l.fields...), fields...)
	return &child
}

// Debug logs a debug message with optional fields
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fields...)
}

// Info logs an informational message with optional fields
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fields...)
}

// Warn logs a warning message with optional fields
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fields...)
}

// Error logs an error message with optional fields
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fields...)
}

// log is the internal logging method
func (l *Logger) log(level Level, msg string, fields ...Field) {
	if l == nil || level < l.level {
		return
	}

	if len(l.fields) > 0 {
		fields = append(append([]Field(nil), l.fields...), fields...)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == FormatJSON {
		l.logJSON(level, msg, fields...)
	} else {
		l.logConsole(level, msg, fields...)
	}
}

// logConsole outputs logs in human-readable console format
func (l *Logger) logConsole(level Level, msg string, fields ...Field) {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	levelStr := level.String()
	if l.color {
		if c, ok := levelColors[level]; ok {
			levelStr = c.Sprint(levelStr)
		}
	}

	var output strings.Builder
	output.WriteString(timestamp)
	output.WriteString(" ")
	output.WriteString(levelStr)
	output.WriteString(" ")
	output.WriteString(msg)

	for _, field := range fields {
		output.WriteString(" ")
		output.WriteString(field.Key)
		output.WriteString("=")
		output.WriteString(fmt.Sprintf("%v", field.Value))
	}

	output.WriteString("\n")

	_, _ = io.WriteString(l.output, output.String())
}

// logJSON outputs logs in JSON format
func (l *Logger) logJSON(level Level, msg string, fields ...Field) {
	logEntry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     level.String(),
		"message":   msg,
	}

	for _, field := range fields {
		logEntry[field.Key] = field.Value
	}

	jsonBytes, err := json.Marshal(logEntry)
	if err != nil {
		// Fallback to console output if JSON marshaling fails
		l.logConsole(level, msg, fields...)
		return
	}

	_, _ = fmt.Fprintf(l.output, "%s\n", jsonBytes)
}

// isTerminal reports whether w is a file attached to a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type contextKey struct{}

// WithContext stores the logger in ctx
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a discarding logger if none is set
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok && logger != nil {
		return logger
	}
	return NewWithOutput(ErrorLevel+1, io.Discard)
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value any
}

// String creates a Field with a string value
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates a Field with an integer value
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates a Field with an unsigned 64-bit value
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a Field with a floating point value
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a Field rendering a duration as a string
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Bool creates a Field with a boolean value
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Error creates a Field with an error value
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a Field with any value
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}
