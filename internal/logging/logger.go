// Package logging provides the structured logger shared by both binaries.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Common field names for consistent logging across the pipeline.
const (
	FieldService        = "service"
	FieldPartitionKey   = "partition_key"
	FieldSequenceNumber = "sequence_number"
	FieldObjectKey      = "object_key"
	FieldRequestID      = "request_id"
	FieldRecords        = "records"
	FieldError          = "error"
)

// New creates a logger writing to stdout with the given level and format.
// format can be "json" or "text" (default is json).
func New(level slog.Level, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel converts a string log level to slog.Level.
// Valid values: "debug", "info", "warn", "error".
// Returns slog.LevelInfo for invalid values.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// PartitionKey returns a slog attribute for a stream partition key.
func PartitionKey(key string) slog.Attr {
	return slog.String(FieldPartitionKey, key)
}

// SequenceNumber returns a slog attribute for a record sequence number.
func SequenceNumber(seq string) slog.Attr {
	return slog.String(FieldSequenceNumber, seq)
}

// ObjectKey returns a slog attribute for a blob store key.
func ObjectKey(key string) slog.Attr {
	return slog.String(FieldObjectKey, key)
}

// RequestID returns a slog attribute for the function invocation id.
func RequestID(id string) slog.Attr {
	return slog.String(FieldRequestID, id)
}

// Records returns a slog attribute for a batch size.
func Records(n int) slog.Attr {
	return slog.Int(FieldRecords, n)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
