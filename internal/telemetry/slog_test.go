package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "json", "info").Info("access denied", "path", "/dashboard/role")

	var obj map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if obj["msg"] != "access denied" || obj["path"] != "/dashboard/role" {
		t.Errorf("unexpected record: %v", obj)
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "text", "info").Info("text test", "env", "development")

	if !strings.Contains(buf.String(), "env=development") {
		t.Errorf("text output missing attribute: %q", buf.String())
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "json", "warn")
	logger.Info("should be suppressed")
	logger.Warn("should appear")

	if strings.Contains(buf.String(), "should be suppressed") {
		t.Error("Info record appeared despite warn level")
	}
	if !strings.Contains(buf.String(), "should appear") {
		t.Error("Warn record was unexpectedly suppressed")
	}
}

func TestSetupLogger_DoesNotPanic(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		for _, level := range []string{"debug", "info", "bogus"} {
			SetupLogger(format, level)
		}
	}
	SetupLogger("text", "error")
}
