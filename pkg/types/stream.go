package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// StreamEvent is the batch envelope delivered by the function runtime when
// records arrive on the stream. Data stays base64 text so the handler owns
// decoding.
type StreamEvent struct {
	Records []StreamRecord `json:"Records"`
}

// StreamRecord is one delivered record inside a StreamEvent.
type StreamRecord struct {
	EventID        string      `json:"eventID"`
	EventName      string      `json:"eventName"`
	EventSource    string      `json:"eventSource"`
	EventSourceARN string      `json:"eventSourceARN"`
	EventVersion   string      `json:"eventVersion"`
	AWSRegion      string      `json:"awsRegion"`
	Kinesis        KinesisData `json:"kinesis"`
}

// KinesisData carries the record payload and its stream coordinates.
type KinesisData struct {
	Data                        string  `json:"data"`
	PartitionKey                string  `json:"partitionKey"`
	SequenceNumber              string  `json:"sequenceNumber"`
	KinesisSchemaVersion        string  `json:"kinesisSchemaVersion,omitempty"`
	ApproximateArrivalTimestamp float64 `json:"approximateArrivalTimestamp,omitempty"`
}

// DecodeData returns the raw payload bytes of the record.
func (r StreamRecord) DecodeData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.Kinesis.Data)
}

// IdempotencyKey identifies the record independently of delivery attempt.
// The source ARN plus sequence number is unique per stream; the event ID is
// used when either is missing. Records without a sequence number fall back
// to a hash of their payload so distinct records never share a key.
func (r StreamRecord) IdempotencyKey() string {
	if r.EventSourceARN != "" && r.Kinesis.SequenceNumber != "" {
		return r.EventSourceARN + "/" + r.Kinesis.SequenceNumber
	}
	if r.EventID != "" {
		return r.EventID
	}
	if r.Kinesis.SequenceNumber != "" {
		return r.Kinesis.PartitionKey + "/" + r.Kinesis.SequenceNumber
	}
	h1, h2 := murmur3.Sum128([]byte(r.Kinesis.Data))
	return fmt.Sprintf("%s/m3-%016x%016x", r.Kinesis.PartitionKey, h1, h2)
}

// NewStreamRecord wraps a raw payload the way the runtime delivers it.
func NewStreamRecord(sourceARN, region, partitionKey, sequenceNumber string, payload []byte) StreamRecord {
	return StreamRecord{
		EventID:        "shardId-000000000000:" + sequenceNumber,
		EventName:      "aws:kinesis:record",
		EventSource:    "aws:kinesis",
		EventSourceARN: sourceARN,
		EventVersion:   "1.0",
		AWSRegion:      region,
		Kinesis: KinesisData{
			Data:                 base64.StdEncoding.EncodeToString(payload),
			PartitionKey:         partitionKey,
			SequenceNumber:       sequenceNumber,
			KinesisSchemaVersion: "1.0",
		},
	}
}

// SuccessMessage is the constant confirmation returned after a batch.
const SuccessMessage = "Data processed and stored in S3."

// BatchResponse is the value returned to the function runtime.
type BatchResponse struct {
	StatusCode        int                `json:"statusCode"`
	Body              string             `json:"body"`
	BatchItemFailures []BatchItemFailure `json:"batchItemFailures,omitempty"`
}

// BatchItemFailure names a record the runtime should redeliver.
type BatchItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// NewSuccessResponse builds the fixed 200 response. The body is the JSON
// encoding of SuccessMessage, quotes included.
func NewSuccessResponse() BatchResponse {
	body, _ := json.Marshal(SuccessMessage)
	return BatchResponse{
		StatusCode: 200,
		Body:       string(body),
	}
}
