package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConsoleHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger = logger.With(String(FieldComponent, "worker"))
	logger.Info("job leased", Int64(FieldJobID, 42), String(FieldWorkerID, "w-1"))

	out := buf.String()
	if !strings.Contains(out, "INFO worker: job leased") {
		t.Fatalf("expected component prefix, got %q", out)
	}
	if !strings.Contains(out, "job_id=42") || !strings.Contains(out, "worker_id=w-1") {
		t.Fatalf("expected key=value attrs, got %q", out)
	}
	if strings.Contains(out, "component=") {
		t.Fatalf("component should be folded into prefix, got %q", out)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Error("zip failed", String("reason", "disk full on host"))

	if !strings.Contains(buf.String(), `reason="disk full on host"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("suppressed")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info record should be suppressed at warn level: %q", out)
	}
	if !strings.Contains(out, "WARN visible") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should not be enabled at any level")
	}
}

func TestFormatValueKinds(t *testing.T) {
	cases := []struct {
		name  string
		value slog.Value
		want  string
	}{
		{"bool", slog.BoolValue(true), "true"},
		{"int", slog.Int64Value(7), "7"},
		{"duration", slog.DurationValue(1500 * time.Millisecond), "1.5s"},
		{"plain string", slog.StringValue("ok"), "ok"},
		{"empty string", slog.StringValue(""), `""`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatValue(tc.value); got != tc.want {
				t.Fatalf("formatValue = %q, want %q", got, tc.want)
			}
		})
	}
}
