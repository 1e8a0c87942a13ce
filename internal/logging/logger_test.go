package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.level.String()
			if result != tt.expected {
				t.Errorf("Expected %s, got: %s", tt.expected, result)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"Debug", DebugLevel},
		{"info", InfoLevel},
		{"INFO", InfoLevel},
		{"Info", InfoLevel},
		{"warn", WarnLevel},
		{"WARN", WarnLevel},
		{"warning", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"ERROR", ErrorLevel},
		{"Error", ErrorLevel},
		{"invalid", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %v, got: %v", tt.expected, result)
			}
		})
	}
}

func TestNew(t *testing.T) {
	logger := New(InfoLevel)

	if logger == nil {
		t.Fatal("Expected logger to be created")
	}

	if logger.level != InfoLevel {
		t.Errorf("Expected level InfoLevel, got: %v", logger.level)
	}
}

func TestNewWithOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(DebugLevel, buf)

	if logger == nil {
		t.Fatal("Expected logger to be created")
	}

	if logger.level != DebugLevel {
		t.Errorf("Expected level DebugLevel, got: %v", logger.level)
	}

	if logger.output != buf {
		t.Error("Expected output to be custom buffer")
	}
}

func TestSetLevel(t *testing.T) {
	logger := New(InfoLevel)
	logger.SetLevel(ErrorLevel)

	if logger.level != ErrorLevel {
		t.Errorf("Expected level ErrorLevel, got: %v", logger.level)
	}
}

func TestLogger_Debug(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(DebugLevel, buf)

	logger.Debug("test debug message")

	output := buf.String()
	if !strings.Contains(output, "DEBUG") {
		t.Errorf("Expected output to contain DEBUG, got: %s", output)
	}
	if !strings.Contains(output, "test debug message") {
		t.Errorf("Expected output to contain message, got: %s", output)
	}
}

func TestLogger_Info(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(InfoLevel, buf)

	logger.Info("test info message")

	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Errorf("Expected output to contain INFO, got: %s", output)
	}
	if !strings.Contains(output, "test info message") {
		t.Errorf("Expected output to contain message, got: %s", output)
	}
}

func TestLogger_Warn(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(WarnLevel, buf)

	logger.Warn("test warn message")

	output := buf.String()
	if !strings.Contains(output, "WARN") {
		t.Errorf("Expected output to contain WARN, got: %s", output)
	}
	if !strings.Contains(output, "test warn message") {
		t.Errorf("Expected output to contain message, got: %s", output)
	}
}

func TestLogger_Error(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(ErrorLevel, buf)

	logger.Error("test error message")

	output := buf.String()
	if !strings.Contains(output, "ERROR") {
		t.Errorf("Expected output to contain ERROR, got: %s", output)
	}
	if !strings.Contains(output, "test error message") {
		t.Errorf("Expected output to contain message, got: %s", output)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(WarnLevel, buf)

	// These should be filtered out
	logger.Debug("debug message")
	logger.Info("info message")

	// These should appear
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should not appear at WARN level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should not appear at WARN level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should appear at WARN level")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should appear at WARN level")
	}
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(InfoLevel, buf)

	logger.Info("test message",
		String("key1", "value1"),
		Int("key2", 42),
		Bool("key3", true),
	)

	output := buf.String()

	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, "key1=value1") {
		t.Errorf("Expected output to contain key1=value1, got: %s", output)
	}
	if !strings.Contains(output, "key2=42") {
		t.Errorf("Expected output to contain key2=42, got: %s", output)
	}
	if !strings.Contains(output, "key3=true") {
		t.Errorf("Expected output to contain key3=true, got: %s", output)
	}
}

func TestField_String(t *testing.T) {
	field := String("key", "value")

	if field.Key != "key" {
		t.Errorf("Expected key 'key', got: %s", field.Key)
	}
	if field.Value != "value" {
		t.Errorf("Expected value 'value', got: %v", field.Value)
	}
}

func TestField_Error(t *testing.T) {
	err := errors.New("test error")
	field := Error(err)

	if field.Key != "error" {
		t.Errorf("Expected key 'error', got: %s", field.Key)
	}
	if field.Value != "test error" {
		t.Errorf("Expected value 'test error', got: %v", field.Value)
	}
}

func TestField_Numeric(t *testing.T) {
	tests := []struct {
		name     string
		field    Field
		expected any
	}{
		{"int", Int("count", 123), 123},
		{"uint64", Uint64("bytes", 1<<40), uint64(1 << 40)},
		{"float64", Float64("rate", 1.5), 1.5},
		{"duration", Duration("elapsed", 1500*time.Millisecond), "1.5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Value != tt.expected {
				t.Errorf("Expected value %v, got: %v", tt.expected, tt.field.Value)
			}
		})
	}
}

func TestField_NilError(t *testing.T) {
	field := Error(nil)

	if field.Value != "<nil>" {
		t.Errorf("Expected value '<nil>', got: %v", field.Value)
	}
}

func TestLogger_OutputFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(InfoLevel, buf)

	logger.Info("test message", String("key", "value"))

	output := buf.String()

	// Check format: timestamp level message key=value
	parts := strings.Fields(output)
	if len(parts) < 4 {
		t.Errorf("Expected at least 4 parts in output, got: %d", len(parts))
	}

	// Check that timestamp is present (first part should be ISO 8601 format)
	if len(parts[0]) < 10 {
		t.Errorf("Expected timestamp in first part, got: %s", parts[0])
	}

	// Check level
	if parts[1] != "INFO" {
		t.Errorf("Expected level INFO, got: %s", parts[1])
	}

	// Check message
	if parts[2] != "test" {
		t.Errorf("Expected message part 'test', got: %s", parts[2])
	}
}

func TestLogger_With(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(InfoLevel, buf)

	child := logger.With(String("run_id", "abc"))
	child.Info("child message", Int("n", 1))
	logger.Info("parent message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got: %d", len(lines))
	}
	if !strings.Contains(lines[0], "run_id=abc") || !strings.Contains(lines[0], "n=1") {
		t.Errorf("Expected child line to carry both fields, got: %s", lines[0])
	}
	if strings.Contains(lines[1], "run_id") {
		t.Errorf("Expected parent line without child fields, got: %s", lines[1])
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(InfoLevel, buf)
	logger.SetFormat(FormatJSON)

	logger.Warn("json message", Uint64("bytes_lost", 42))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected valid JSON, got error: %v (%s)", err, buf.String())
	}
	if entry["level"] != "WARN" {
		t.Errorf("Expected level WARN, got: %v", entry["level"])
	}
	if entry["message"] != "json message" {
		t.Errorf("Expected message, got: %v", entry["message"])
	}
	if entry["bytes_lost"] != float64(42) {
		t.Errorf("Expected bytes_lost 42, got: %v", entry["bytes_lost"])
	}
}

func TestLogger_ColorOnlyWhenEnabled(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(InfoLevel, buf)

	logger.Info("plain")
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("Expected no escape codes for a non-terminal writer, got: %q", buf.String())
	}
}

func TestLogger_NilIsSilent(t *testing.T) {
	var logger *Logger
	logger.Info("nothing happens")
}

func TestContext(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(InfoLevel, buf)

	ctx := WithContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("Expected logger from context")
	}

	fallback := FromContext(context.Background())
	if fallback == nil {
		t.Fatal("Expected fallback logger")
	}
	fallback.Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("Expected fallback logger to discard output, got: %s", buf.String())
	}
}

func TestFormat_String(t *testing.T) {
	if FormatConsole.String() != "console" {
		t.Errorf("Expected console, got: %s", FormatConsole.String())
	}
	if FormatJSON.String() != "json" {
		t.Errorf("Expected json, got: %s", FormatJSON.String())
	}
}
