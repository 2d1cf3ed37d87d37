package channel

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	perrors "github.com/activitysink/activitysink/internal/errors"
)

// messageWriter is the part of *kafka.Writer the channel relies on.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaChannel submits records to a Kafka topic. The partition key becomes
// the message key and the hash balancer keeps one key on one partition.
type KafkaChannel struct {
	writer messageWriter
	topic  string
}

// NewKafkaChannel creates a synchronous Kafka writer for topic.
func NewKafkaChannel(brokers []string, topic string) *KafkaChannel {
	return newKafkaChannel(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}, topic)
}

func newKafkaChannel(w messageWriter, topic string) *KafkaChannel {
	return &KafkaChannel{writer: w, topic: topic}
}

// Topic returns the target topic.
func (k *KafkaChannel) Topic() string {
	return k.topic
}

// Submit implements Channel.
func (k *KafkaChannel) Submit(ctx context.Context, partitionKey string, data []byte) error {
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(partitionKey),
		Value: data,
	})
	if err != nil {
		return perrors.NewChannelError(perrors.CodeSubmitFailed, "write message to "+k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaChannel) Close() error {
	return k.writer.Close()
}
