package conf

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("warn", "json", &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("component", "test").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if entry["message"] != "shown" || entry["component"] != "test" || entry["level"] != "warn" {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestNewLogger_ConsoleAndFallbackLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("loud", "console", &buf)

	log.Debug().Msg("hidden")
	log.Info().Msg("started")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected debug to be filtered at the fallback info level")
	}
	if !strings.Contains(out, "started") || strings.HasPrefix(out, "{") {
		t.Errorf("Expected console output, got %q", out)
	}
}

func TestConfigLogger_DebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Debug: true, Log: LogConfig{Level: "error", Format: "json"}}

	cfg.Logger(&buf).Debug().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("Expected debug output, got %q", buf.String())
	}
}
