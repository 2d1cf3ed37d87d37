// Package types defines the event payload and the stream delivery envelope
// shared by the producer and the consumer.
package types

import (
	"encoding/json"
	"fmt"
)

// Event is a single synthetic user-activity record emitted by the producer.
// UserID doubles as the stream partition key.
type Event struct {
	UserID    string `json:"user_id"`
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"`
}

// PartitionKey returns the key used to route the event within the stream.
func (e Event) PartitionKey() string {
	return e.UserID
}

// EncodeEvent serializes an event into its wire payload (compact JSON).
func EncodeEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("types: failed to encode event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses a wire payload back into an event.
// The consumer never calls this; it treats payloads as opaque bytes.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("types: failed to decode event: %w", err)
	}
	return e, nil
}
