package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONLoggerToFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "mcp", "WARN")
	logger.Info("lookup_started")
	logger.Warn("portal_session_expired", "city_id", "bucuresti-ilfov")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if entry["msg"] != "portal_session_expired" || entry["service"] != "mcp" || entry["city_id"] != "bucuresti-ilfov" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
}
