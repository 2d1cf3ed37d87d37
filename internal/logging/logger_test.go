package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")
	logger.Info("Sending", PartitionKey("user_3"), Error(errors.New("boom")))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "Sending" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry[FieldPartitionKey] != "user_3" {
		t.Errorf("partition_key = %v", entry[FieldPartitionKey])
	}
	if entry[FieldError] != "boom" {
		t.Errorf("error = %v", entry[FieldError])
	}
}

func TestNewWithWriter_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelWarn, "text")
	logger.Info("hidden")
	logger.Warn("shown", ObjectKey("a.json"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "object_key=a.json") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestAttributes(t *testing.T) {
	attrs := []struct {
		attr slog.Attr
		key  string
	}{
		{Service("activity-producer"), FieldService},
		{SequenceNumber("495"), FieldSequenceNumber},
		{RequestID("req-1"), FieldRequestID},
		{Records(3), FieldRecords},
	}
	for _, a := range attrs {
		if a.attr.Key != a.key {
			t.Errorf("expected key %q, got %q", a.key, a.attr.Key)
		}
	}
}
