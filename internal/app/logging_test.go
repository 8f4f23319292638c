package app_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"syncpair/internal/app"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := app.NewLogger("warn", "json", &buf)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Str("peer", "laptop").Msg("shown")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("want exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "shown" || line["peer"] != "laptop" || line["level"] != "warn" {
		t.Fatalf("unexpected entry: %v", line)
	}
}

func TestNewLogger_Rejects(t *testing.T) {
	var buf bytes.Buffer
	if _, err := app.NewLogger("loud", "json", &buf); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := app.NewLogger("info", "xml", &buf); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if _, err := app.NewLogger("", "", &buf); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}
