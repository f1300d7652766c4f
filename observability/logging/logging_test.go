package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMaskFieldRedactsContactDetails(t *testing.T) {
	if got := MaskField("contactEmail", "jane@example.com"); got.Value.String() != RedactedValue {
		t.Fatalf("expected email to be masked, got %q", got.Value.String())
	}
	if got := MaskField("contactPhone", ""); got.Value.String() != "" {
		t.Fatalf("empty values stay empty, got %q", got.Value.String())
	}
	if got := MaskField("reportId", "7"); got.Value.String() != "7" {
		t.Fatalf("allowlisted key must pass through, got %q", got.Value.String())
	}
	for _, key := range RedactionAllowlist() {
		if strings.Contains(key, "contact") || strings.Contains(key, "email") || strings.Contains(key, "phone") {
			t.Fatalf("contact key %q must not be allowlisted", key)
		}
	}
}

func TestContactGroupRendersMasked(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("posted", Contact("Jane", "+1555", "jane@example.com"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	contact, ok := line["contact"].(map[string]any)
	if !ok {
		t.Fatalf("missing contact group: %v", line)
	}
	for _, key := range []string{"contactName", "contactPhone", "contactEmail"} {
		if contact[key] != RedactedValue {
			t.Fatalf("%s leaked: %v", key, contact[key])
		}
	}
}

func TestSetupWithFileWritesRotatedSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	logger, closer := SetupWithFile("pettraced", "test", slog.LevelInfo, FileConfig{Path: path, MaxSizeMB: 1})
	defer closer.Close()

	logger.Info("hello", slog.String("component", "test"))

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &line); err != nil {
		t.Fatalf("decode log line %q: %v", raw, err)
	}
	if line["message"] != "hello" || line["severity"] != "INFO" || line["service"] != "pettraced" || line["env"] != "test" {
		t.Fatalf("unexpected log line %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp key: %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("warning") != slog.LevelWarn || ParseLevel("") != slog.LevelInfo {
		t.Fatalf("unexpected level mapping")
	}
}
