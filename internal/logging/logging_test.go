package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/omochice/caret-chat/internal/logging"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(&buf, "info", "json")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Debug().Msg("hidden")
	log.Info().Str("addr", "127.0.0.1:1").Msg("client connected")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if entry["message"] != "client connected" || entry["addr"] != "127.0.0.1:1" || entry["level"] != "info" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry has no timestamp")
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(&buf, "debug", "console")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Debug().Msg("frame")
	if !strings.Contains(buf.String(), "frame") {
		t.Errorf("console output %q lacks message", buf.String())
	}
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("console output looks like JSON: %q", buf.String())
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := logging.New(&bytes.Buffer{}, "loud", "json"); err == nil {
		t.Error("New() accepted unknown level")
	}
	if _, err := logging.New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Error("New() accepted unknown format")
	}
}
