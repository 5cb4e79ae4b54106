package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	l.Info("test message", slog.String("key", "value"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}

	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
}

func TestSetup_IncludesTimeAndService(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, nil)

	l.Info("test")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
	if entry["service"] != "shortlink" {
		t.Errorf("service = %q, want %q", entry["service"], "shortlink")
	}
}

func TestSetup_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info log should be dropped at WARN level, got %s", buf.String())
	}

	l.Warn("warning test")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}
}

func TestSetup_MultipleAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("redirect resolved",
		slog.Int64("entity_id", 42),
		slog.String("short_code", "16"),
		slog.String("redirect_url", "https://example.com/target"),
		slog.Int("status", 302),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if entry["entity_id"] != float64(42) {
		t.Errorf("entity_id = %v, want %v", entry["entity_id"], 42)
	}
	if entry["short_code"] != "16" {
		t.Errorf("short_code = %q, want %q", entry["short_code"], "16")
	}
	if entry["redirect_url"] != "https://example.com/target" {
		t.Errorf("redirect_url = %q, want %q", entry["redirect_url"], "https://example.com/target")
	}
	if entry["status"] != float64(302) {
		t.Errorf("status = %v, want %v", entry["status"], 302)
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)
	SetLevel(slog.LevelInfo)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v\nraw: %s", err, buf.String())
	}

	if entry["msg"] != "global test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "global test")
	}
	if entry["test_key"] != "test_val" {
		t.Errorf("test_key = %q, want %q", entry["test_key"], "test_val")
	}
}

func TestSetLevel_ChangesGlobalLevel(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)
	defer SetLevel(slog.LevelInfo)

	SetLevel(slog.LevelError)
	slog.Default().Warn("should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("warn log should be dropped at ERROR level, got %s", buf.String())
	}

	SetLevel(slog.LevelDebug)
	slog.Default().Debug("visible")
	if buf.Len() == 0 {
		t.Fatal("debug log should be written at DEBUG level")
	}
}
