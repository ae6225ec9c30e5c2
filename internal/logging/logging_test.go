package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		debug    string
		logLevel string
		expected LogLevel
	}{
		{"Debug via LOG_LEVEL", "", "debug", LevelDebug},
		{"Info via LOG_LEVEL", "", "info", LevelInfo},
		{"Warn via LOG_LEVEL", "", "warn", LevelWarn},
		{"Warning alias", "", "warning", LevelWarn},
		{"Error via LOG_LEVEL", "", "error", LevelError},
		{"Case insensitive", "", "DEBUG", LevelDebug},
		{"Unknown defaults to info", "", "verbose", LevelInfo},
		{"DEBUG overrides LOG_LEVEL", "true", "error", LevelDebug},
		{"DEBUG=0 ignored", "0", "warn", LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEBUG", tt.debug)
			t.Setenv("LOG_LEVEL", tt.logLevel)

			if got := levelFromEnv(); got != tt.expected {
				t.Errorf("levelFromEnv() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(42), "unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	original := GetLevel()
	defer SetLevel(original)

	SetLevel(LevelWarn)

	Debug("debug message")
	Info("info message")
	Warn("warn message %d", 1)
	Error("error message %s", "x")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("debug message should be filtered at warn level")
	}
	if strings.Contains(out, "info message") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "warn message 1") {
		t.Errorf("expected warn message in output, got %q", out)
	}
	if !strings.Contains(out, "error message x") {
		t.Errorf("expected error message in output, got %q", out)
	}
}

func TestIsDebugEnabled(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	SetLevel(LevelDebug)
	if !IsDebugEnabled() {
		t.Error("expected debug enabled at LevelDebug")
	}

	SetLevel(LevelInfo)
	if IsDebugEnabled() {
		t.Error("expected debug disabled at LevelInfo")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	t.Setenv("LOG_FORMAT", "json")
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	log := WithComponent("pipeline")
	log.Error().Str("job", "abc").Msg("stage failed")

	out := buf.String()
	if !strings.Contains(out, `"component":"pipeline"`) {
		t.Errorf("expected component field, got %q", out)
	}
	if !strings.Contains(out, `"job":"abc"`) {
		t.Errorf("expected job field, got %q", out)
	}
}
