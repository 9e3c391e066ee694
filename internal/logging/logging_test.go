/*-------------------------------------------------------------------------
 *
 * sqlpilot - Structured Logging Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package logging

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		level  LogLevel
		wantOK bool
	}{
		{"debug", "debug", LevelDebug, true},
		{"info", "info", LevelInfo, true},
		{"warn", "warn", LevelWarn, true},
		{"warning alias", "warning", LevelWarn, true},
		{"error", "error", LevelError, true},
		{"mixed case", "InFo", LevelInfo, true},
		{"padded", "  debug ", LevelDebug, true},
		{"empty", "", LevelError, false},
		{"unknown", "verbose", LevelError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := ParseLevel(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseLevel(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && level != tt.level {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, level, tt.level)
			}
		})
	}
}

func TestSetAndGetLevel(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	for _, level := range []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		SetLevel(level)
		if got := GetLevel(); got != level {
			t.Errorf("GetLevel() = %v, want %v", got, level)
		}
	}
}

func TestLogOutput(t *testing.T) {
	originalStderr := os.Stderr

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w

	originalLevel := GetLevel()
	SetLevel(LevelDebug)
	defer func() {
		SetLevel(originalLevel)
		os.Stderr = originalStderr
	}()

	Info("query executed", "schema", "public", "rows", 7)

	w.Close()
	output, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}

	var entry logEntry
	if err := json.Unmarshal(output, &entry); err != nil {
		t.Fatalf("Failed to parse log output as JSON: %v\nOutput: %s", err, string(output))
	}

	if entry.Level != "INFO" {
		t.Errorf("Level = %v, want INFO", entry.Level)
	}
	if entry.Message != "query executed" {
		t.Errorf("Message = %v, want 'query executed'", entry.Message)
	}
	if entry.Fields["schema"] != "public" {
		t.Errorf("Fields[schema] = %v, want 'public'", entry.Fields["schema"])
	}
	if entry.Fields["rows"] != float64(7) {
		t.Errorf("Fields[rows] = %v, want 7", entry.Fields["rows"])
	}
	if entry.Timestamp == "" {
		t.Error("Timestamp is empty")
	}
}

func TestLogLevelFiltering(t *testing.T) {
	originalStderr := os.Stderr

	originalLevel := GetLevel()
	SetLevel(LevelWarn)
	defer func() {
		SetLevel(originalLevel)
		os.Stderr = originalStderr
	}()

	t.Run("debug below threshold", func(t *testing.T) {
		r, w, _ := os.Pipe()
		os.Stderr = w

		Debug("debug message")

		w.Close()
		output, _ := io.ReadAll(r)

		if len(output) > 0 {
			t.Error("Debug message should not be logged when level is WARN")
		}
	})

	t.Run("info below threshold", func(t *testing.T) {
		r, w, _ := os.Pipe()
		os.Stderr = w

		Info("info message")

		w.Close()
		output, _ := io.ReadAll(r)

		if len(output) > 0 {
			t.Error("Info message should not be logged when level is WARN")
		}
	})

	t.Run("warn at threshold", func(t *testing.T) {
		r, w, _ := os.Pipe()
		os.Stderr = w

		Warn("warn message")

		w.Close()
		output, _ := io.ReadAll(r)

		if len(output) == 0 {
			t.Error("Warn message should be logged when level is WARN")
		}
		if !strings.Contains(string(output), "WARN") {
			t.Error("Output should contain WARN level")
		}
	})

	t.Run("error above threshold", func(t *testing.T) {
		r, w, _ := os.Pipe()
		os.Stderr = w

		Error("error message")

		w.Close()
		output, _ := io.ReadAll(r)

		if len(output) == 0 {
			t.Error("Error message should be logged when level is WARN")
		}
		if !strings.Contains(string(output), "ERROR") {
			t.Error("Output should contain ERROR level")
		}
	})
}

func TestLogWithOddNumberOfKeyValues(t *testing.T) {
	originalStderr := os.Stderr

	r, w, _ := os.Pipe()
	os.Stderr = w

	originalLevel := GetLevel()
	SetLevel(LevelDebug)
	defer func() {
		SetLevel(originalLevel)
		os.Stderr = originalStderr
	}()

	Info("odd pairs", "tool", "list_schemas", "dangling")

	w.Close()
	output, _ := io.ReadAll(r)

	var entry logEntry
	if err := json.Unmarshal(output, &entry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}

	if entry.Fields["tool"] != "list_schemas" {
		t.Errorf("Fields[tool] = %v, want 'list_schemas'", entry.Fields["tool"])
	}
	if _, exists := entry.Fields["dangling"]; exists {
		t.Error("dangling key should not appear without a value")
	}
}
