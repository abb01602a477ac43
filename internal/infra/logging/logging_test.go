package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("debug", &buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Debug("digest signed", zap.String("key_id", "0"))
	_ = log.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "digest signed" || entry["key_id"] != "0" || entry["service"] != "keyward" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("warn", &buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Info("hidden")
	_ = log.Sync()
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel(""); err != nil || lvl != zapcore.InfoLevel {
		t.Fatalf("empty level defaults to info, got %v %v", lvl, err)
	}
	if lvl, err := ParseLevel(" ERROR "); err != nil || lvl != zapcore.ErrorLevel {
		t.Fatalf("unexpected level %v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
